package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/repository/memory"
	"github.com/meetapp/meetapp/internal/scheduling"
)

var testNow = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []model.NotificationJob
	err  error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, job model.NotificationJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

func (d *recordingDispatcher) Jobs() []model.NotificationJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.NotificationJob(nil), d.jobs...)
}

type testEnv struct {
	store         *memory.Store
	clock         *clock.Fixed
	metrics       *metrics.InMemoryRecorder
	dispatcher    *recordingDispatcher
	meetups       *MeetupService
	subscriptions *SubscriptionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvIn(t, time.UTC)
}

func newTestEnvIn(t *testing.T, loc *time.Location) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	if err := store.CreateFile(ctx, &model.File{ID: "img", Name: "banner.png", Path: "banner.png"}); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	for _, u := range []*model.User{
		{ID: "ana", Name: "Ana", Email: "ana@example.com"},
		{ID: "bea", Name: "Bea", Email: "bea@example.com"},
		{ID: "cy", Name: "Cy", Email: "cy@example.com"},
	} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	env := &testEnv{
		store:      store,
		clock:      clock.NewFixed(testNow),
		metrics:    metrics.NewInMemory(),
		dispatcher: &recordingDispatcher{},
	}
	opts := Options{
		Location: loc,
		Metrics:  env.metrics,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	policy := scheduling.NewPolicy(store, store)
	env.meetups = NewMeetupService(store, policy, env.clock, opts)
	env.subscriptions = NewSubscriptionService(store, store, policy, env.dispatcher, env.clock, opts)
	return env
}

func input(date string) MeetupInput {
	return MeetupInput{
		Title:       "Go Night",
		Description: "Talks and pizza",
		Location:    "Community Hall",
		Date:        date,
		ImageID:     "img",
	}
}

// mustCreate creates a meetup for owner at date.
func (e *testEnv) mustCreate(t *testing.T, owner, date string) *model.Meetup {
	t.Helper()
	m, err := e.meetups.Create(context.Background(), owner, input(date))
	if err != nil {
		t.Fatalf("Create(%s, %s): %v", owner, date, err)
	}
	return m
}
