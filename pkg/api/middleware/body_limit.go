package middleware

import (
	"net/http"

	"github.com/sallie/companion/pkg/api/response"
)

// BodyLimit caps request bodies at maxBytes. Reads past the cap fail, which
// the JSON decoders surface as a 413. A non-positive limit disables it.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Connection", "close")
				response.Error(w,
					http.StatusRequestEntityTooLarge,
					response.ErrCodePayloadTooLarge,
					"Request body too large",
					requestIDOrUnknown(r),
				)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
