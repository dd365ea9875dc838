package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"

	"github.com/frahmantamala/courier-fulfillment/pkg/logger"
)

const (
	RequestIDHeader     = "X-Request-ID"
	callbackTokenHeader = "X-Callback-Token"
)

// RequestID reuses an inbound X-Request-ID or mints one, echoes it on the
// response and tags the request logger with it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		ctx = logger.With(ctx, "request_id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
