package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request ID between services, so a front
	// request and the delay fetch it triggers share one ID in the logs.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the context key under which the ID is stored
	RequestIDKey = "requestID"
)

// WithRequestID tags every request with an ID: the caller's X-Request-ID
// when present, a fresh UUID otherwise. The ID lands on the context and is
// echoed back in the response headers.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
