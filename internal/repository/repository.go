// Package repository provides the PostgreSQL access layer for meetups,
// subscriptions and the user and file records they join on.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage errors. Services translate these into domain errors.
var (
	ErrMeetupNotFound           = errors.New("meetup not found")
	ErrMeetupSlotTaken          = errors.New("owner already has a meetup at this time")
	ErrSubscriptionExists       = errors.New("subscription already exists")
	ErrSubscriptionTimeConflict = errors.New("user already subscribed to a meetup at this time")
	ErrUserNotFound             = errors.New("user not found")
	ErrFileNotFound             = errors.New("file not found")
	ErrReferenceNotFound        = errors.New("referenced record does not exist")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repository provides database access methods.
type Repository struct {
	pool         *pgxpool.Pool
	filesBaseURL string
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// SetFilesBaseURL sets the public prefix used to build file URLs.
func (r *Repository) SetFilesBaseURL(baseURL string) {
	r.filesBaseURL = strings.TrimSuffix(baseURL, "/")
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// FileURL returns the public URL of a stored file path.
func FileURL(baseURL, path string) string {
	if baseURL == "" {
		return "/" + strings.TrimPrefix(path, "/")
	}
	return baseURL + "/" + strings.TrimPrefix(path, "/")
}

// constraintViolation reports the PostgreSQL error code and constraint name
// when err is a constraint violation.
func constraintViolation(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}
	switch pgErr.Code {
	case pgUniqueViolation, pgForeignKeyViolation:
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}
