//go:build integration

package notification

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/testutil"
)

func TestIntegrationDeliveryStore_AttemptLifecycle(t *testing.T) {
	ctx, store := newDeliveryTestEnv(t)
	job := validJob()

	d, err := store.BeginAttempt(ctx, job)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if d.Status != model.DeliveryStatusPending || d.Attempts != 1 {
		t.Fatalf("first attempt = %+v", d)
	}

	if err := store.MarkFailed(ctx, job.ID, "smtp timeout"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	d, err = store.BeginAttempt(ctx, job)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if d.Status != model.DeliveryStatusFailed || d.Attempts != 2 {
		t.Fatalf("second attempt = %+v", d)
	}
	if d.LastError == nil || *d.LastError != "smtp timeout" {
		t.Errorf("LastError = %v", d.LastError)
	}

	deliveredAt := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	if err := store.MarkDelivered(ctx, job.ID, deliveredAt); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}

	// Final rows are not counted again.
	d, err = store.BeginAttempt(ctx, job)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if d.Status != model.DeliveryStatusDelivered || d.Attempts != 2 {
		t.Errorf("after delivery = %+v", d)
	}
	if d.DeliveredAt == nil || !d.DeliveredAt.Equal(deliveredAt) {
		t.Errorf("DeliveredAt = %v, want %v", d.DeliveredAt, deliveredAt)
	}
}

func TestIntegrationDeliveryStore_CountAndMissing(t *testing.T) {
	ctx, store := newDeliveryTestEnv(t)

	for i, mark := range []func(context.Context, string, string) error{
		store.MarkSkipped,
		store.MarkExhausted,
		store.MarkExhausted,
	} {
		job := jobN(i)
		if _, err := store.BeginAttempt(ctx, job); err != nil {
			t.Fatalf("BeginAttempt: %v", err)
		}
		if err := mark(ctx, job.ID, "reason"); err != nil {
			t.Fatalf("mark: %v", err)
		}
	}

	counts, err := store.CountByStatus(ctx, model.DeliveryStatusExhausted, model.DeliveryStatusSkipped, model.DeliveryStatusPending)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[model.DeliveryStatusExhausted] != 2 || counts[model.DeliveryStatusSkipped] != 1 || counts[model.DeliveryStatusPending] != 0 {
		t.Errorf("counts = %v", counts)
	}

	if err := store.MarkFailed(ctx, "missing", "x"); !errors.Is(err, ErrDeliveryNotFound) {
		t.Errorf("expected ErrDeliveryNotFound, got %v", err)
	}
	if _, err := store.GetDelivery(ctx, "missing"); !errors.Is(err, ErrDeliveryNotFound) {
		t.Errorf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func newDeliveryTestEnv(t *testing.T) (context.Context, *SQLDeliveryStore) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("AcquireDBLock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("ResetSchema: %v", err)
	}

	var db *sql.DB
	db, err = OpenDB(ctx, dbURL)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return ctx, NewSQLDeliveryStore(db)
}
