package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/meetapp/meetapp/internal/cache"
)

// Limiter is the token-bucket store behind RateLimit. *cache.Cache
// implements it.
type Limiter interface {
	CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Enabled bool
	// RequestsPerMinute is the sustained rate; zero disables limiting.
	RequestsPerMinute int
	Burst             int
}

// RateLimit returns middleware that rate limits API requests per caller.
// Identified callers get their own bucket; anonymous ones share a bucket
// per client IP. Limiter errors fail open.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			var (
				result *cache.RateLimitResult
				err    error
				kind   string
			)
			userID := callerID(r)
			ip := getClientIP(r)
			if userID != "" {
				kind = "user"
				result, err = cfg.Limiter.CheckUserRateLimit(r.Context(), userID, cfg.RequestsPerMinute, cfg.Burst)
			} else {
				kind = "ip"
				result, err = cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.RequestsPerMinute, cfg.Burst)
			}
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("type", kind),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.RequestsPerMinute, result.Remaining, result.ResetAt)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", kind),
					slog.String("user_id", userID),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfterSeconds(retryAfter)))
}

// retryAfterSeconds rounds up and never advertises less than one second.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
