package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitUserPrefix = "ratelimit:user:"
	rateLimitIPPrefix   = "ratelimit:ip:"
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket will be full again.
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and takes one token atomically. Time comes from
// the Redis server in milliseconds so every API replica shares one clock.
// The key expires once the bucket would be full, since a missing key reads
// as a full bucket.
//
// ARGV[1] tokens per millisecond, ARGV[2] burst.
// Returns {allowed, wait_ms, remaining, full_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local data = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(data[1]) or burst
local ts = tonumber(data[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - ts) * rate)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait_ms = math.ceil((1 - tokens) / rate)
end
local full_ms = math.ceil((burst - tokens) / rate)

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', key, full_ms + 1000)

return {allowed, wait_ms, math.floor(tokens), full_ms}
`)

// CheckUserRateLimit takes a token from an identified user's bucket.
// A ratePerMinute of zero or less disables the limit.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	return c.take(ctx, userKey(userID), ratePerMinute, burst)
}

// CheckIPRateLimit takes a token from an anonymous caller's bucket.
// The IP is hashed so raw addresses are never stored.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*RateLimitResult, error) {
	return c.take(ctx, ipKey(ip), ratePerMinute, burst)
}

// take returns an allowing result alongside any Redis error; callers decide
// whether to fail open.
func (c *Cache) take(ctx context.Context, key string, ratePerMinute, burst int) (*RateLimitResult, error) {
	burst = max(burst, 1)
	if ratePerMinute <= 0 {
		return unlimited(burst), nil
	}

	perMillisecond := float64(ratePerMinute) / float64(time.Minute.Milliseconds())
	res, err := tokenBucketScript.Run(ctx, c.client, []string{key}, perMillisecond, burst).Int64Slice()
	if err != nil {
		return unlimited(burst), fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 4 {
		return unlimited(burst), fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  res[2],
		ResetAt:    time.Now().Add(time.Duration(res[3]) * time.Millisecond),
	}, nil
}

func unlimited(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now(),
	}
}

func userKey(userID string) string {
	return rateLimitUserPrefix + userID
}

func ipKey(ip string) string {
	return rateLimitIPPrefix + hashIP(ip)
}

// hashIP returns the first 16 hex characters of the IP's SHA-256.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}
