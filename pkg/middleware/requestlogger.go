package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ssnivlek/kelvo-ecomm/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context for handlers to
// fetch with logger.FromContext. Every line it emits carries the request
// method and path plus whatever of correlation_id, session_id, user_id,
// trace_id and span_id is known.
//
// Mount it after RequestLogging, Tracing and Identity.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if logger.UserIDFromContext(ctx) == "" {
				if userID := UserIDFromContext(ctx); userID != "" {
					ctx = logger.WithUserID(ctx, userID)
				}
			}

			scoped := logger.WithContext(ctx, base).With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, scoped)))
		})
	}
}
