package http

import (
	"context"
	"net/http"

	"github.com/crealith/authcore/internal/app/session"
	"github.com/crealith/authcore/internal/infrastructure/apperr"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/crealith/authcore/internal/infrastructure/httpx"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const URLParamSessionID = "session_id"

type Manager interface {
	List(ctx context.Context, userID uuid.UUID) ([]session.Metadata, error)
	Invalidate(ctx context.Context, userID uuid.UUID, sessionID string) error
	InvalidateAll(ctx context.Context, userID uuid.UUID) (int, error)
}

// Handler exposes the browser-session listing and kill-switch endpoints.
// All of them act on the authenticated user only.
type Handler struct {
	manager Manager
}

func NewHandler(manager Manager) *Handler {
	if manager == nil {
		panic("nil Manager")
	}
	return &Handler{manager: manager}
}

// ListSessions godoc
// @Summary      List active browser sessions
// @Description  Returns session metadata for the current user, newest first.
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} session.Metadata
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.Handler.ListSessions.contextx.GetUserID")
		httpx.ReturnError(ctx, w, err)
		return
	}

	sessions, err := h.manager.List(ctx, userID)
	if err != nil {
		logger.Error(ctx, err).Msg("session.Handler.ListSessions.manager.List")
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, sessions)
}

// DeleteSession godoc
// @Summary      Invalidate one browser session
// @Tags         sessions
// @Security     BearerAuth
// @Param        session_id path string true "Session ID"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/{session_id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.Handler.DeleteSession.contextx.GetUserID")
		httpx.ReturnError(ctx, w, err)
		return
	}

	sessionID := chi.URLParam(r, URLParamSessionID)
	if sessionID == "" {
		err = apperr.ErrBadRequest().WithDetail("session id required")
		logger.Warn(ctx, err).Msg("session.Handler.DeleteSession: empty session ID")
		httpx.ReturnError(ctx, w, err)
		return
	}

	if err = h.manager.Invalidate(ctx, userID, sessionID); err != nil {
		logger.Error(ctx, err).
			Str("session_id", sessionID).
			Msg("session.Handler.DeleteSession.manager.Invalidate")
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllSessions godoc
// @Summary      Invalidate every browser session
// @Tags         sessions
// @Security     BearerAuth
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions [delete]
func (h *Handler) DeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.Handler.DeleteAllSessions.contextx.GetUserID")
		httpx.ReturnError(ctx, w, err)
		return
	}

	if _, err = h.manager.InvalidateAll(ctx, userID); err != nil {
		logger.Error(ctx, err).Msg("session.Handler.DeleteAllSessions.manager.InvalidateAll")
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
