package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/transport"
	"github.com/frahmantamala/courier-fulfillment/pkg/logger"
)

// Recovery turns a handler panic into a 500 AppError body. The panic value
// is logged with the stack and never echoed to the client.
func Recovery(next http.Handler) http.Handler {
	base := transport.NewBaseHandler(nil)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.From(r.Context()).ErrorContext(r.Context(), "panic recovered",
				"error", fmt.Sprint(rec),
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()))

			base.WriteAppError(w, internal.NewInternalError("Internal server error", nil))
		}()

		next.ServeHTTP(w, r)
	})
}
