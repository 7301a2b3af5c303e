package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/meetapp/meetapp/internal/model"
)

// ErrDeliveryNotFound is returned when no delivery row exists for a job.
var ErrDeliveryNotFound = errors.New("delivery not found")

// DeliveryStore records delivery attempts, keyed by job id.
type DeliveryStore interface {
	// BeginAttempt creates or loads the delivery row and counts one more
	// attempt unless the delivery already reached a final status.
	BeginAttempt(ctx context.Context, job model.NotificationJob) (*model.NotificationDelivery, error)
	MarkDelivered(ctx context.Context, jobID string, at time.Time) error
	MarkFailed(ctx context.Context, jobID, reason string) error
	MarkExhausted(ctx context.Context, jobID, reason string) error
	MarkSkipped(ctx context.Context, jobID, reason string) error
}

// OpenDB opens a database/sql pool on the lib/pq driver.
func OpenDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	connector, err := pq.NewConnector(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// SQLDeliveryStore persists deliveries in the notification_deliveries table.
type SQLDeliveryStore struct {
	db *sql.DB
}

// NewSQLDeliveryStore creates a delivery store.
func NewSQLDeliveryStore(db *sql.DB) *SQLDeliveryStore {
	return &SQLDeliveryStore{db: db}
}

const deliveryColumns = `job_id, kind, meetup_id, user_id, status, attempts,
	last_error, created_at, updated_at, delivered_at`

// BeginAttempt upserts the delivery row for job.
func (s *SQLDeliveryStore) BeginAttempt(ctx context.Context, job model.NotificationJob) (*model.NotificationDelivery, error) {
	query := `
		INSERT INTO notification_deliveries (job_id, kind, meetup_id, user_id, status, attempts)
		VALUES ($1, $2, $3, $4, 'pending', 1)
		ON CONFLICT (job_id) DO UPDATE SET
			attempts = CASE
				WHEN notification_deliveries.status = ANY($5) THEN notification_deliveries.attempts
				ELSE notification_deliveries.attempts + 1
			END,
			updated_at = NOW()
		RETURNING ` + deliveryColumns

	row := s.db.QueryRowContext(ctx, query,
		job.ID,
		string(job.Kind),
		job.MeetupID,
		job.UserID,
		pq.Array(finalStatuses()),
	)

	delivery, err := scanDelivery(row)
	if err != nil {
		return nil, fmt.Errorf("begin delivery attempt: %w", err)
	}
	return delivery, nil
}

// MarkDelivered records a successful delivery.
func (s *SQLDeliveryStore) MarkDelivered(ctx context.Context, jobID string, at time.Time) error {
	return s.setStatus(ctx, jobID, model.DeliveryStatusDelivered, nil, &at)
}

// MarkFailed records a failed attempt that will be retried.
func (s *SQLDeliveryStore) MarkFailed(ctx context.Context, jobID, reason string) error {
	return s.setStatus(ctx, jobID, model.DeliveryStatusFailed, &reason, nil)
}

// MarkExhausted records that no further attempts will be made.
func (s *SQLDeliveryStore) MarkExhausted(ctx context.Context, jobID, reason string) error {
	return s.setStatus(ctx, jobID, model.DeliveryStatusExhausted, &reason, nil)
}

// MarkSkipped records a job that no longer applies.
func (s *SQLDeliveryStore) MarkSkipped(ctx context.Context, jobID, reason string) error {
	return s.setStatus(ctx, jobID, model.DeliveryStatusSkipped, &reason, nil)
}

// GetDelivery loads the delivery row for jobID.
func (s *SQLDeliveryStore) GetDelivery(ctx context.Context, jobID string) (*model.NotificationDelivery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM notification_deliveries WHERE job_id = $1`, jobID)

	delivery, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query delivery: %w", err)
	}
	return delivery, nil
}

// CountByStatus returns the number of deliveries in each of the given statuses.
func (s *SQLDeliveryStore) CountByStatus(ctx context.Context, statuses ...model.DeliveryStatus) (map[model.DeliveryStatus]int64, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM notification_deliveries
		WHERE status = ANY($1)
		GROUP BY status
	`, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.DeliveryStatus]int64, len(statuses))
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan delivery count: %w", err)
		}
		counts[model.DeliveryStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery counts: %w", err)
	}
	return counts, nil
}

func (s *SQLDeliveryStore) setStatus(ctx context.Context, jobID string, status model.DeliveryStatus, reason *string, deliveredAt *time.Time) error {
	var lastError sql.NullString
	if reason != nil {
		lastError = sql.NullString{String: truncate(*reason, 1000), Valid: true}
	}
	var delivered pq.NullTime
	if deliveredAt != nil {
		delivered = pq.NullTime{Time: deliveredAt.UTC(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_deliveries
		SET status = $2,
			last_error = COALESCE($3, last_error),
			delivered_at = COALESCE($4, delivered_at),
			updated_at = NOW()
		WHERE job_id = $1
	`, jobID, string(status), lastError, delivered)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if n == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func scanDelivery(row *sql.Row) (*model.NotificationDelivery, error) {
	var (
		d           model.NotificationDelivery
		kind        string
		status      string
		lastError   sql.NullString
		deliveredAt pq.NullTime
	)
	err := row.Scan(
		&d.JobID,
		&kind,
		&d.MeetupID,
		&d.UserID,
		&status,
		&d.Attempts,
		&lastError,
		&d.CreatedAt,
		&d.UpdatedAt,
		&deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	d.Kind = model.JobKind(kind)
	d.Status = model.DeliveryStatus(status)
	if lastError.Valid {
		d.LastError = &lastError.String
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		d.DeliveredAt = &t
	}
	return &d, nil
}

func finalStatuses() []string {
	return []string{
		string(model.DeliveryStatusDelivered),
		string(model.DeliveryStatusExhausted),
		string(model.DeliveryStatusSkipped),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
