package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/handler/dto"
	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/middleware"
	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/repository/memory"
	"github.com/meetapp/meetapp/internal/scheduling"
	"github.com/meetapp/meetapp/internal/service"
)

var testNow = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

type countingDispatcher struct {
	mu   sync.Mutex
	jobs []model.NotificationJob
}

func (d *countingDispatcher) Enqueue(_ context.Context, job model.NotificationJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *countingDispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

type apiEnv struct {
	router     http.Handler
	store      *memory.Store
	clock      *clock.Fixed
	dispatcher *countingDispatcher
	metrics    *metrics.InMemoryRecorder
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	if err := store.CreateFile(ctx, &model.File{ID: "img", Name: "banner.png", Path: "banner.png"}); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	for _, u := range []*model.User{
		{ID: "ana", Name: "Ana", Email: "ana@example.com"},
		{ID: "bea", Name: "Bea", Email: "bea@example.com"},
	} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &apiEnv{
		store:      store,
		clock:      clock.NewFixed(testNow),
		dispatcher: &countingDispatcher{},
		metrics:    metrics.NewInMemory(),
	}
	opts := service.Options{Metrics: env.metrics, Logger: logger}
	policy := scheduling.NewPolicy(store, store)
	meetups := NewMeetupHandler(service.NewMeetupService(store, policy, env.clock, opts), env.clock, logger)
	subs := NewSubscriptionHandler(service.NewSubscriptionService(store, store, policy, env.dispatcher, env.clock, opts), env.clock, logger)
	h := New(middleware.UserIDHeader)

	r := chi.NewRouter()
	r.Get("/", h.Hello)
	r.Get("/metrics", NewMetricsHandler(env.metrics).Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logger))
		r.Get("/meetups", meetups.List)
		r.Post("/meetups", meetups.Create)
		r.Put("/meetups/{id}", meetups.Update)
		r.Delete("/meetups/{id}", meetups.Delete)
		r.Get("/organizing", meetups.Organizing)
		r.Get("/subscriptions", subs.List)
		r.Get("/subscriptions/calendar.ics", subs.Calendar)
		r.Post("/subscriptions", subs.Subscribe)
	})
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	env.router = r
	return env
}

func (e *apiEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func testUser(id string) *model.User {
	return &model.User{ID: id, Name: strings.ToUpper(id[:1]) + id[1:], Email: id + "@example.com"}
}

func meetupBody(date string) dto.MeetupRequest {
	return dto.MeetupRequest{
		Title:       "Go Night",
		Description: "Talks and pizza",
		Location:    "Community Hall",
		Date:        date,
		ImageID:     "img",
	}
}

func (e *apiEnv) mustCreate(t *testing.T, owner, date string) dto.MeetupResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/meetups", owner, meetupBody(date))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create meetup: status %d, body %s", rec.Code, rec.Body.String())
	}
	var m dto.MeetupResponse
	decode(t, rec, &m)
	return m
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var body dto.ErrorResponse
	decode(t, rec, &body)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	if body.Error == "" {
		t.Error("error message is empty")
	}
}
