package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(Dependency{Name: "postgres", Checker: &mockHealthChecker{err: errors.New("down")}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := decodeHealth(t, rec); got.Status != "ok" || got.Checks != nil {
		t.Errorf("unexpected response: %+v", got)
	}
}

func TestHealthHandler_Readyz_AllHealthy(t *testing.T) {
	h := NewHealthHandler(
		Dependency{Name: "postgres", Checker: &mockHealthChecker{}},
		Dependency{Name: "redis", Checker: &mockHealthChecker{}},
		Dependency{Name: "deliveries", Checker: PingFunc(func(context.Context) error { return nil })},
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	response := decodeHealth(t, rec)
	if response.Status != "ok" {
		t.Errorf("expected status ok, got %s", response.Status)
	}
	for _, name := range []string{"postgres", "redis", "deliveries"} {
		if response.Checks[name] != "ok" {
			t.Errorf("expected %s ok, got %q", name, response.Checks[name])
		}
	}
}

func TestHealthHandler_Readyz_DependencyUnhealthy(t *testing.T) {
	h := NewHealthHandler(
		Dependency{Name: "postgres", Checker: &mockHealthChecker{err: errors.New("connection refused")}},
		Dependency{Name: "redis", Checker: &mockHealthChecker{}},
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	response := decodeHealth(t, rec)
	if response.Status != "unhealthy" {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Checks["postgres"] != "error: connection refused" {
		t.Errorf("unexpected postgres check: %q", response.Checks["postgres"])
	}
	if response.Checks["redis"] != "ok" {
		t.Errorf("expected redis ok, got %q", response.Checks["redis"])
	}
}

func TestHealthHandler_Readyz_NotConfigured(t *testing.T) {
	h := NewHealthHandler(Dependency{Name: "redis"})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := decodeHealth(t, rec); got.Checks["redis"] != "not configured" {
		t.Errorf("expected redis not configured, got %q", got.Checks["redis"])
	}
}
