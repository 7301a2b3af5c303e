package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meetapp/meetapp/internal/model"
)

// CreateUser inserts a user record. Users are provisioned by the identity
// service; this is used for seeding and replication.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, name, email, avatar_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.AvatarID,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, name, email, avatar_id, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.AvatarID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return &user, nil
}

// CreateFile inserts a file record.
func (r *Repository) CreateFile(ctx context.Context, file *model.File) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO files (id, name, path) VALUES ($1, $2, $3)`,
		file.ID, file.Name, file.Path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	file.URL = FileURL(r.filesBaseURL, file.Path)
	return nil
}

// GetFileByID retrieves a file by its ID.
func (r *Repository) GetFileByID(ctx context.Context, id string) (*model.File, error) {
	var file model.File
	err := r.pool.QueryRow(ctx, `SELECT id, name, path FROM files WHERE id = $1`, id).Scan(
		&file.ID,
		&file.Name,
		&file.Path,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file by ID: %w", err)
	}

	file.URL = FileURL(r.filesBaseURL, file.Path)
	return &file, nil
}
