package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/logger"
)

// Recovery returns a middleware that turns handler panics into 500 responses.
// The panic value is logged, never returned to the client.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.ErrorContext(r.Context(), "Panic recovered",
					"error", rec,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", GetRequestID(r.Context()),
					"stack", string(debug.Stack()),
				)
				response.Error(w,
					http.StatusInternalServerError,
					response.ErrCodeInternalServer,
					"Internal server error",
					requestIDOrUnknown(r),
				)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func requestIDOrUnknown(r *http.Request) string {
	if id := GetRequestID(r.Context()); id != "" {
		return id
	}
	return "unknown"
}
