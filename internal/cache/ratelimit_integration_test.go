//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/meetapp/meetapp/internal/testutil"
)

func TestIntegrationRateLimit_ExhaustAndWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := New(ctx, testutil.RequireEnv(t, "REDIS_URL"), Options{})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer c.Close()

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	// 60/min is one token per second.
	const rpm, burst = 60, 2
	for i := 0; i < burst; i++ {
		res, err := c.CheckUserRateLimit(ctx, "ana", rpm, burst)
		if err != nil {
			t.Fatalf("take %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("take %d denied, want allowed", i)
		}
	}

	res, err := c.CheckUserRateLimit(ctx, "ana", rpm, burst)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if res.Allowed {
		t.Fatal("third take allowed, want denied")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want (0, 1s]", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if !res.ResetAt.After(time.Now()) {
		t.Errorf("ResetAt = %v, want in the future", res.ResetAt)
	}

	ttl, err := c.Client().PTTL(ctx, userKey("ana")).Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl <= 0 || ttl > 4*time.Second {
		t.Errorf("bucket TTL = %v, want refill time plus a second", ttl)
	}

	other, err := c.CheckIPRateLimit(ctx, "203.0.113.9", rpm, burst)
	if err != nil {
		t.Fatalf("ip take: %v", err)
	}
	if !other.Allowed {
		t.Error("separate IP bucket should be full")
	}
}
