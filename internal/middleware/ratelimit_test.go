package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/meetapp/meetapp/internal/cache"
)

// fakeLimiter allows a fixed number of requests per key.
type fakeLimiter struct {
	mu      sync.Mutex
	allow   int
	counts  map[string]int
	err     error
	lastKey string
}

func newFakeLimiter(allow int) *fakeLimiter {
	return &fakeLimiter{allow: allow, counts: make(map[string]int)}
}

func (f *fakeLimiter) CheckUserRateLimit(_ context.Context, userID string, _, _ int) (*cache.RateLimitResult, error) {
	return f.check("user:" + userID)
}

func (f *fakeLimiter) CheckIPRateLimit(_ context.Context, ip string, _, _ int) (*cache.RateLimitResult, error) {
	return f.check("ip:" + ip)
}

func (f *fakeLimiter) check(key string) (*cache.RateLimitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastKey = key
	if f.err != nil {
		return nil, f.err
	}
	f.counts[key]++
	if f.counts[key] > f.allow {
		return &cache.RateLimitResult{Allowed: false, RetryAfter: 3 * time.Second, ResetAt: time.Now()}, nil
	}
	return &cache.RateLimitResult{
		Allowed:   true,
		Remaining: int64(f.allow - f.counts[key]),
		ResetAt:   time.Now().Add(time.Minute),
	}, nil
}

func (f *fakeLimiter) LastKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastKey
}

func rateLimited(limiter Limiter, enabled bool) http.Handler {
	return RateLimit(RateLimitConfig{
		Logger:            discardLogger(),
		Limiter:           limiter,
		Enabled:           enabled,
		RequestsPerMinute: 60,
		Burst:             2,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimit_PerUser(t *testing.T) {
	t.Parallel()

	limiter := newFakeLimiter(2)
	handler := rateLimited(limiter, true)

	do := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/meetups", nil)
		req.Header.Set(UserIDHeader, userID)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("ana"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := do("ana")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Errorf("Retry-After = %q, want 3", got)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", body["code"])
	}

	// Another user has their own bucket.
	if rec := do("bea"); rec.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", rec.Code)
	}
	if limiter.LastKey() != "user:bea" {
		t.Errorf("last key = %q, want user:bea", limiter.LastKey())
	}
}

func TestRateLimit_AnonymousByIP(t *testing.T) {
	t.Parallel()

	limiter := newFakeLimiter(5)
	handler := rateLimited(limiter, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/meetups", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if limiter.LastKey() != "ip:10.1.2.3:5555" {
		t.Errorf("last key = %q", limiter.LastKey())
	}
	if rec.Header().Get("X-RateLimit-Limit") != "60" {
		t.Errorf("X-RateLimit-Limit = %q, want 60", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	t.Parallel()

	limiter := newFakeLimiter(0)
	limiter.err = errors.New("redis down")
	handler := rateLimited(limiter, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/meetups", nil)
	req.Header.Set(UserIDHeader, "ana")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	limiter := newFakeLimiter(0)
	handler := rateLimited(limiter, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/meetups", nil)
	req.Header.Set(UserIDHeader, "ana")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if limiter.LastKey() != "" {
		t.Error("limiter should not be consulted when disabled")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	if got := retryAfterSeconds(0); got != 1 {
		t.Errorf("retryAfterSeconds(0) = %d, want 1", got)
	}
	if got := retryAfterSeconds(7 * time.Second); got != 7 {
		t.Errorf("retryAfterSeconds(7s) = %d, want 7", got)
	}
	if got := retryAfterSeconds(1500 * time.Millisecond); got != 2 {
		t.Errorf("retryAfterSeconds(1.5s) = %d, want 2", got)
	}
}
