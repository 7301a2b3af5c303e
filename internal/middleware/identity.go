package middleware

import (
	"log/slog"
	"net/http"

	"github.com/meetapp/meetapp/internal/auth"
)

// UserIDHeader carries the caller identity set by the upstream gateway.
const UserIDHeader = "X-User-ID"

// Identity returns a middleware that requires a well-formed X-User-ID header
// and stores the caller's id in the request context. The gateway is trusted;
// whether the user exists is checked by the services on write.
func Identity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.NormalizeUserID(r.Header.Get(UserIDHeader))
			if !ok {
				logger.Warn("identity missing",
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid "+UserIDHeader+" header")
				return
			}

			ctx := auth.ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerID returns the identity of the request, from context when the
// Identity middleware already ran and from the header otherwise.
func callerID(r *http.Request) string {
	if id := auth.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	id, _ := auth.NormalizeUserID(r.Header.Get(UserIDHeader))
	return id
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func getClientIP(r *http.Request) string {
	// First entry of X-Forwarded-For is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := range xff {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
