package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meetapp/meetapp/internal/model"
	"github.com/redis/go-redis/v9"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema applies every down migration in reverse order followed by
// every up migration.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downs, err := migrationFiles(root, ".down.sql")
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	ups, err := migrationFiles(root, ".up.sql")
	if err != nil {
		return err
	}
	sort.Strings(ups)

	for _, path := range append(downs, ups...) {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

func migrationFiles(root, suffix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "migrations", "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	var files []string
	for _, m := range matches {
		if strings.HasSuffix(m, suffix) {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s migrations found", suffix)
	}
	return files, nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, name string) *model.User {
	t.Helper()
	id := UniqueID("user")
	return &model.User{
		ID:        id,
		Name:      name,
		Email:     id + "@example.com",
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestFile creates a test file record.
func NewTestFile(t testing.TB) *model.File {
	t.Helper()
	id := UniqueID("file")
	return &model.File{
		ID:   id,
		Name: "banner.png",
		Path: id + ".png",
	}
}

// NewTestMeetup creates a meetup owned by ownerID at date. The date is
// truncated to the hour the way stored meetups are.
func NewTestMeetup(t testing.TB, ownerID, imageID string, date time.Time) *model.Meetup {
	t.Helper()
	now := time.Now().UTC()
	return &model.Meetup{
		ID:          UniqueID("meetup"),
		Title:       "Go Night",
		Description: "Talks and pizza",
		Location:    "Community Hall",
		Date:        date.Truncate(time.Hour),
		OwnerID:     ownerID,
		ImageID:     imageID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

var idSeq atomic.Int64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idSeq.Add(1))
}
