package http

import (
	"net/http"
	"strings"

	"github.com/crealith/authcore/internal/app/auth"
	"github.com/crealith/authcore/internal/infrastructure/apperr"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/crealith/authcore/internal/infrastructure/httpx"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/google/uuid"
)

type AccessVerifier interface {
	VerifyAccess(token string) (auth.Identity, error)
}

// AuthMiddleware validates the bearer access token and puts the verified
// identity into the request context.
func AuthMiddleware(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				err := apperr.ErrUnauthorized().WithDetail("missing or malformed Authorization header")
				logger.Error(ctx, err).
					Msg("auth.AuthMiddleware: invalid Authorization header")
				httpx.ReturnError(ctx, w, err)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			id, err := verifier.VerifyAccess(tokenStr)
			if err != nil {
				logger.Error(ctx, err).
					Msg("auth.AuthMiddleware: invalid token")
				httpx.ReturnError(ctx, w, err)
				return
			}
			if id.UserID == uuid.Nil {
				err = apperr.ErrUnauthorized().WithDetail("token carries no subject")
				logger.Error(ctx, err).
					Msg("auth.AuthMiddleware: invalid token subject")
				httpx.ReturnError(ctx, w, err)
				return
			}

			ctx = contextx.SetUserID(ctx, id.UserID)
			ctx = contextx.SetUserEmail(ctx, id.Email)
			ctx = contextx.SetUserRole(ctx, id.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
