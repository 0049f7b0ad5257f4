package middleware

import (
	"net/http"
	"time"

	"github.com/sallie/companion/pkg/logger"
)

// Logger returns a middleware that logs one line per request. Server errors
// log at error level and client errors at warn.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapWriter(w)

			next.ServeHTTP(wrapped, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern(r),
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", wrapped.size,
				"remote_addr", r.RemoteAddr,
			}
			if id := GetRequestID(r.Context()); id != "" {
				args = append(args, "request_id", id)
			}

			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				log.ErrorContext(r.Context(), "HTTP request", args...)
			case wrapped.statusCode >= http.StatusBadRequest:
				log.WarnContext(r.Context(), "HTTP request", args...)
			default:
				log.InfoContext(r.Context(), "HTTP request", args...)
			}
		})
	}
}
