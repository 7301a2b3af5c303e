package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meetapp/meetapp/internal/model"
)

// CreateSubscription inserts a subscription. The write runs in a transaction
// holding a share lock on the meetup and an advisory lock on the subscriber,
// so the exact-date re-check and the insert cannot interleave with another
// subscribe by the same user or a reschedule of the meetup.
func (r *Repository) CreateSubscription(ctx context.Context, sub *model.Subscription) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin subscription tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// The meetup row is share-locked before the subscriber lock, matching
	// UpdateMeetup's order, and the date is read from the locked row.
	var meetupDate time.Time
	err = tx.QueryRow(ctx, `SELECT date FROM meetups WHERE id = $1 FOR SHARE`, sub.MeetupID).Scan(&meetupDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrMeetupNotFound
			return err
		}
		return fmt.Errorf("failed to lock meetup: %w", err)
	}

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "subscriber:"+sub.UserID); err != nil {
		return fmt.Errorf("failed to lock subscriber: %w", err)
	}

	var exists, conflict bool
	err = tx.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM subscriptions WHERE user_id = $1 AND meetup_id = $2),
			EXISTS(
				SELECT 1 FROM subscriptions s
				JOIN meetups m ON m.id = s.meetup_id
				WHERE s.user_id = $1 AND m.date = $3 AND m.id <> $2
			)
	`, sub.UserID, sub.MeetupID, meetupDate).Scan(&exists, &conflict)
	if err != nil {
		return fmt.Errorf("failed to re-check subscription: %w", err)
	}
	if exists {
		err = ErrSubscriptionExists
		return err
	}
	if conflict {
		err = ErrSubscriptionTimeConflict
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, meetup_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, sub.ID, sub.UserID, sub.MeetupID, sub.CreatedAt)
	if err != nil {
		if mapped := subscriptionWriteError(err); mapped != nil {
			err = mapped
			return err
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit subscription: %w", err)
	}

	return nil
}

// SubscriptionExists reports whether the user is subscribed to the meetup.
func (r *Repository) SubscriptionExists(ctx context.Context, userID, meetupID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id = $1 AND meetup_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, meetupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}

	return exists, nil
}

// HasSubscriptionAt reports whether the user is subscribed to a meetup other
// than excludeMeetupID dated exactly at date.
func (r *Repository) HasSubscriptionAt(ctx context.Context, userID string, date time.Time, excludeMeetupID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM subscriptions s
			JOIN meetups m ON m.id = s.meetup_id
			WHERE s.user_id = $1 AND m.date = $2 AND m.id <> $3
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, date, excludeMeetupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check subscription time: %w", err)
	}

	return exists, nil
}

// ListUpcomingSubscriptions returns the user's subscriptions to meetups dated
// after the given instant, earliest meetup first.
func (r *Repository) ListUpcomingSubscriptions(ctx context.Context, userID string, after time.Time) ([]*model.SubscriptionDetails, error) {
	query := `
		SELECT s.id, s.user_id, s.meetup_id, s.created_at,
		       ` + meetupColumns + `,
		       u.id, u.name, u.email,
		       a.id, a.name, a.path
		FROM subscriptions s
		JOIN meetups m ON m.id = s.meetup_id
		JOIN users u ON u.id = m.owner_id
		LEFT JOIN files a ON a.id = u.avatar_id
		WHERE s.user_id = $1 AND m.date > $2
		ORDER BY m.date ASC, s.id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*model.SubscriptionDetails
	for rows.Next() {
		var (
			d                    model.SubscriptionDetails
			avatarID, avatarName *string
			avatarPath           *string
		)
		m := &d.Meetup
		err := rows.Scan(
			&d.ID, &d.UserID, &d.MeetupID, &d.CreatedAt,
			&m.ID, &m.Title, &m.Description, &m.Location, &m.Date, &m.OwnerID, &m.ImageID, &m.CreatedAt, &m.UpdatedAt,
			&d.Organizer.ID, &d.Organizer.Name, &d.Organizer.Email,
			&avatarID, &avatarName, &avatarPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		d.Organizer.Avatar = r.file(avatarID, avatarName, avatarPath)
		subs = append(subs, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

func subscriptionWriteError(err error) error {
	code, constraint, ok := constraintViolation(err)
	if !ok {
		return nil
	}
	switch {
	case code == pgUniqueViolation && constraint == "subscriptions_user_meetup_key":
		return ErrSubscriptionExists
	case code == pgForeignKeyViolation && constraint == "subscriptions_meetup_id_fkey":
		return ErrMeetupNotFound
	case code == pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReferenceNotFound, constraint)
	}
	return nil
}
