package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kbukum/relay/logger"
)

// RequestIDHeader carries the request ID on inbound and outbound requests.
const RequestIDHeader = "X-Request-Id"

// RequestID reuses the inbound X-Request-Id or generates one, echoes it on
// the response and stores it in the request context for the logger and the
// outbound HTTP client.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := logger.ContextWithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
