package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	if hashIP(ip) != hashIP(ip) {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if hash := hashIP(tt.ip); len(hash) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestRateLimitKeys(t *testing.T) {
	t.Parallel()

	if got := userKey("01HZX3J8M7"); got != "ratelimit:user:01HZX3J8M7" {
		t.Errorf("userKey = %q", got)
	}

	key := ipKey("10.0.0.1")
	if !strings.HasPrefix(key, rateLimitIPPrefix) {
		t.Errorf("ipKey = %q, want prefix %q", key, rateLimitIPPrefix)
	}
	if strings.Contains(key, "10.0.0.1") {
		t.Errorf("ipKey leaks raw address: %q", key)
	}
	if userKey("10.0.0.1") == key {
		t.Error("user and IP keys must not collide")
	}
}

func TestCheckUserRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	// A zero rate never touches Redis, so a nil client is fine.
	c := &Cache{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	res, err := c.CheckUserRateLimit(ctx, "user-1", 0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed || res.Remaining != 5 {
		t.Errorf("got %+v, want allowed with 5 remaining", res)
	}
}

func TestOptionsApply(t *testing.T) {
	t.Parallel()

	opt := &redis.Options{}
	Options{}.apply(opt)
	if opt.PoolSize != defaultPoolSize || opt.MinIdleConns != defaultMinIdleConns {
		t.Errorf("defaults = %d/%d, want %d/%d", opt.PoolSize, opt.MinIdleConns, defaultPoolSize, defaultMinIdleConns)
	}

	opt = &redis.Options{}
	Options{PoolSize: 50, MinIdleConns: 5}.apply(opt)
	if opt.PoolSize != 50 || opt.MinIdleConns != 5 {
		t.Errorf("overrides = %d/%d, want 50/5", opt.PoolSize, opt.MinIdleConns)
	}
}
