package http

import (
	"context"
	"net/http"

	"github.com/crealith/authcore/internal/app/session"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/crealith/authcore/internal/infrastructure/logger"
)

type Validator interface {
	Validate(ctx context.Context, sessionID string, reqCtx session.RequestContext) (*session.Data, error)
}

// SessionMiddleware is a soft check: when a session cookie rides along it is
// validated and its id added to the context for log correlation, and the
// sliding window refreshed. A missing or dead session never fails the
// request; the bearer token is the authority.
func SessionMiddleware(validator Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sessionID := SessionIDFromRequest(r)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			data, err := validator.Validate(ctx, sessionID, RequestContextOf(r))
			if err != nil {
				logger.Error(ctx, err).Msg("session.SessionMiddleware.validator.Validate")
				next.ServeHTTP(w, r)
				return
			}
			if data == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx = contextx.SetSessionID(ctx, data.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
