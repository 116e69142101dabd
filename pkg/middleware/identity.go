package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ssnivlek/kelvo-ecomm/pkg/logger"
)

// Headers set by the storefront client and the auth gateway in front of this
// service. Token verification happens upstream; values here are trusted as-is.
const (
	UserIDHeader    = "X-User-ID"
	SessionIDHeader = "X-Session-ID"
)

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// Identity copies the caller's user and cart session identifiers from request
// headers into the context. Both are optional; anonymous carts carry only a
// session id.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			ctx = context.WithValue(ctx, userIDKey, id)
			ctx = logger.WithUserID(ctx, id)
		}
		if id := strings.TrimSpace(r.Header.Get(SessionIDHeader)); id != "" {
			ctx = logger.WithSessionID(ctx, id)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext extracts the user ID set by Identity.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
