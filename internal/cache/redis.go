// Package cache owns the shared Redis client and the token-bucket rate limiter
// built on it. The notification stream reuses the same client.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the connection pool. Zero values take the defaults.
type Options struct {
	// PoolSize must leave room for the notification worker, which holds one
	// connection for the whole of each blocking XREADGROUP.
	PoolSize     int
	MinIdleConns int
}

const (
	defaultPoolSize     = 20
	defaultMinIdleConns = 2
)

func (o Options) apply(opt *redis.Options) {
	opt.PoolSize = o.PoolSize
	if opt.PoolSize <= 0 {
		opt.PoolSize = defaultPoolSize
	}
	opt.MinIdleConns = o.MinIdleConns
	if opt.MinIdleConns <= 0 {
		opt.MinIdleConns = defaultMinIdleConns
	}
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
}

// Cache wraps the Redis client used for rate limiting and notifications.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection with a PING.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.apply(opt)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity. It backs the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client.
// The notification queue and worker share it.
func (c *Cache) Client() *redis.Client {
	return c.client
}
