package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meetapp/meetapp/internal/model"
)

// MeetupFilter restricts a meetup listing to a date range. Both bounds are
// inclusive and optional.
type MeetupFilter struct {
	From *time.Time
	To   *time.Time
}

const meetupColumns = `m.id, m.title, m.description, m.location, m.date, m.owner_id, m.image_id, m.created_at, m.updated_at`

// CreateMeetup inserts a new meetup. The caller is responsible for
// truncating Date to the hour.
func (r *Repository) CreateMeetup(ctx context.Context, meetup *model.Meetup) error {
	query := `
		INSERT INTO meetups (id, title, description, location, date, owner_id, image_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		meetup.ID,
		meetup.Title,
		meetup.Description,
		meetup.Location,
		meetup.Date,
		meetup.OwnerID,
		meetup.ImageID,
		meetup.CreatedAt,
		meetup.UpdatedAt,
	)
	if err != nil {
		if mapped := meetupWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create meetup: %w", err)
	}

	return nil
}

// GetMeetupByID retrieves a meetup by its ID.
func (r *Repository) GetMeetupByID(ctx context.Context, id string) (*model.Meetup, error) {
	query := `SELECT ` + meetupColumns + ` FROM meetups m WHERE m.id = $1`

	meetup, err := scanMeetup(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMeetupNotFound
		}
		return nil, fmt.Errorf("failed to get meetup by ID: %w", err)
	}

	return meetup, nil
}

// UpdateMeetup updates a meetup's mutable fields. The meetup row is locked
// first, then every subscriber's advisory lock in user order, the same order
// CreateSubscription uses. A reschedule onto a date where a subscriber already
// holds another meetup returns ErrSubscriptionTimeConflict.
func (r *Repository) UpdateMeetup(ctx context.Context, meetup *model.Meetup) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin meetup tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var current time.Time
	err = tx.QueryRow(ctx, `SELECT date FROM meetups WHERE id = $1 FOR UPDATE`, meetup.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrMeetupNotFound
			return err
		}
		return fmt.Errorf("failed to lock meetup: %w", err)
	}

	if !current.Equal(meetup.Date) {
		_, err = tx.Exec(ctx, `
			SELECT pg_advisory_xact_lock(hashtext('subscriber:' || user_id))
			FROM (SELECT user_id FROM subscriptions WHERE meetup_id = $1 ORDER BY user_id) s
		`, meetup.ID)
		if err != nil {
			return fmt.Errorf("failed to lock subscribers: %w", err)
		}

		var conflict bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM subscriptions mine
				JOIN subscriptions other ON other.user_id = mine.user_id AND other.meetup_id <> mine.meetup_id
				JOIN meetups m ON m.id = other.meetup_id
				WHERE mine.meetup_id = $1 AND m.date = $2
			)
		`, meetup.ID, meetup.Date).Scan(&conflict)
		if err != nil {
			return fmt.Errorf("failed to check subscriber conflicts: %w", err)
		}
		if conflict {
			err = ErrSubscriptionTimeConflict
			return err
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE meetups
		SET title = $2, description = $3, location = $4, date = $5, image_id = $6
		WHERE id = $1
		RETURNING updated_at
	`,
		meetup.ID,
		meetup.Title,
		meetup.Description,
		meetup.Location,
		meetup.Date,
		meetup.ImageID,
	).Scan(&meetup.UpdatedAt)
	if err != nil {
		if mapped := meetupWriteError(err); mapped != nil {
			err = mapped
			return err
		}
		return fmt.Errorf("failed to update meetup: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit meetup: %w", err)
	}

	return nil
}

// DeleteMeetup removes a meetup. Its subscriptions are removed by cascade.
func (r *Repository) DeleteMeetup(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM meetups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meetup: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMeetupNotFound
	}

	return nil
}

// OwnerHasMeetupAt reports whether the owner has a meetup stored at exactly
// date, other than excludeID.
func (r *Repository) OwnerHasMeetupAt(ctx context.Context, ownerID string, date time.Time, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM meetups WHERE owner_id = $1 AND date = $2 AND id <> $3)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, ownerID, date, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check meetup slot: %w", err)
	}

	return exists, nil
}

// ListMeetups returns meetups ordered by date with their organizer, image and
// subscriber ids.
func (r *Repository) ListMeetups(ctx context.Context, filter MeetupFilter, limit, offset int) ([]*model.MeetupDetails, error) {
	query := `
		SELECT ` + meetupColumns + `,
		       u.id, u.name, u.email,
		       a.id, a.name, a.path,
		       i.id, i.name, i.path,
		       ARRAY(SELECT s.user_id FROM subscriptions s WHERE s.meetup_id = m.id ORDER BY s.created_at)
		FROM meetups m
		JOIN users u ON u.id = m.owner_id
		LEFT JOIN files a ON a.id = u.avatar_id
		LEFT JOIN files i ON i.id = m.image_id
		WHERE TRUE
	`
	args := []any{}
	argIndex := 1

	if filter.From != nil {
		query += fmt.Sprintf(" AND m.date >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND m.date <= $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY m.date ASC, m.id ASC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetups: %w", err)
	}
	defer rows.Close()

	meetups := make([]*model.MeetupDetails, 0, limit)
	for rows.Next() {
		var (
			d                    model.MeetupDetails
			avatarID, avatarName *string
			avatarPath, imageID  *string
			imageName, imagePath *string
		)
		err := rows.Scan(
			&d.ID, &d.Title, &d.Description, &d.Location, &d.Date, &d.OwnerID, &d.ImageID, &d.CreatedAt, &d.UpdatedAt,
			&d.Owner.ID, &d.Owner.Name, &d.Owner.Email,
			&avatarID, &avatarName, &avatarPath,
			&imageID, &imageName, &imagePath,
			&d.SubscriberIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meetup: %w", err)
		}
		d.Owner.Avatar = r.file(avatarID, avatarName, avatarPath)
		d.Image = r.file(imageID, imageName, imagePath)
		if d.SubscriberIDs == nil {
			d.SubscriberIDs = []string{}
		}
		meetups = append(meetups, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meetups: %w", err)
	}

	return meetups, nil
}

// ListMeetupsByOwner returns every meetup organized by ownerID ordered by date.
func (r *Repository) ListMeetupsByOwner(ctx context.Context, ownerID string) ([]*model.Meetup, error) {
	query := `SELECT ` + meetupColumns + ` FROM meetups m WHERE m.owner_id = $1 ORDER BY m.date ASC, m.id ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizer meetups: %w", err)
	}
	defer rows.Close()

	var meetups []*model.Meetup
	for rows.Next() {
		meetup, err := scanMeetup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meetup: %w", err)
		}
		meetups = append(meetups, meetup)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meetups: %w", err)
	}

	return meetups, nil
}

// scanMeetup scans a row selected with meetupColumns.
func scanMeetup(row pgx.Row) (*model.Meetup, error) {
	var m model.Meetup
	err := row.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.Location,
		&m.Date,
		&m.OwnerID,
		&m.ImageID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return &m, err
}

// file builds a File from nullable joined columns.
func (r *Repository) file(id, name, path *string) *model.File {
	if id == nil {
		return nil
	}
	f := &model.File{ID: *id}
	if name != nil {
		f.Name = *name
	}
	if path != nil {
		f.Path = *path
		f.URL = FileURL(r.filesBaseURL, *path)
	}
	return f
}

func meetupWriteError(err error) error {
	code, constraint, ok := constraintViolation(err)
	if !ok {
		return nil
	}
	switch {
	case code == pgUniqueViolation && constraint == "meetups_owner_date_key":
		return ErrMeetupSlotTaken
	case code == pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReferenceNotFound, constraint)
	}
	return nil
}
