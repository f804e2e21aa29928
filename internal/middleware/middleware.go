package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestID tags every request with an id, echoes it in the
// X-Request-ID response header and scopes the request logger to it.
// A caller-supplied id is kept so upstream traces stay joinable.
func RequestID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			loggerWithID := logger.With().Str("request_id", requestID).Logger()
			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = loggerWithID.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))

			loggerWithID.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
