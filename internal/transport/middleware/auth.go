package middleware

import (
	"net/http"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	"github.com/frahmantamala/courier-fulfillment/internal/transport"
	"github.com/frahmantamala/courier-fulfillment/pkg/logger"
)

// Authenticate requires a valid bearer token and stores its subject as the
// caller's user id. Permissions are checked later by the services.
func Authenticate(tokens auth.TokenValidator) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(nil)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := transport.ExtractTokenFromHeader(r)
			if raw == "" {
				base.WriteAppError(w, internal.ErrInvalidToken)
				return
			}

			claims, err := tokens.ValidateToken(raw)
			if err != nil {
				logger.From(r.Context()).InfoContext(r.Context(), "bearer token rejected", "error", err)
				base.HandleServiceError(w, r, err)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				base.HandleServiceError(w, r, err)
				return
			}

			ctx := internal.ContextWithUserID(r.Context(), userID)
			if claims.Email != "" {
				ctx = internal.ContextWithEmail(ctx, claims.Email)
			}
			ctx = logger.With(ctx, "user_id", userID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
