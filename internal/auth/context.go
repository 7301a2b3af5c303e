// Package auth carries the caller identity supplied by the upstream gateway.
package auth

import (
	"context"
	"strings"
)

// MaxUserIDLength bounds identities accepted from the gateway.
const MaxUserIDLength = 64

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userIDContextKey is the context key for the caller's user id.
	userIDContextKey contextKey = "user_id"
)

// ContextWithUserID adds the caller's user id to the context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext retrieves the caller's user id.
// Returns empty string if not identified.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}

// MustUserIDFromContext retrieves the caller's user id.
// Panics if not present (use only when the identity middleware has run).
func MustUserIDFromContext(ctx context.Context) string {
	id := UserIDFromContext(ctx)
	if id == "" {
		panic("user id not found - ensure identity middleware is applied")
	}
	return id
}

// NormalizeUserID trims a raw header value and reports whether it is a
// usable identity: non-empty, bounded, and free of whitespace and control
// characters.
func NormalizeUserID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > MaxUserIDLength {
		return "", false
	}
	for _, r := range id {
		if r <= ' ' || r == 0x7f {
			return "", false
		}
	}
	return id, true
}
