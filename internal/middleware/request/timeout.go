package request

import (
	"context"
	"net/http"
	"time"
)

// WithTimeout bounds the request context with a deadline. Handlers observe
// the deadline through r.Context(); the delay service relies on this to cut
// off sleeps that outlive the configured request timeout.
func WithTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
