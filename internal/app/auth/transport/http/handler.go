package http

import (
	"context"
	"net/http"

	"github.com/crealith/authcore/internal/app/auth"
	"github.com/crealith/authcore/internal/app/auth/usecase"
	"github.com/crealith/authcore/internal/app/session"
	session_http "github.com/crealith/authcore/internal/app/session/transport/http"
	"github.com/crealith/authcore/internal/app/user"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/crealith/authcore/internal/infrastructure/httpx"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/crealith/authcore/internal/infrastructure/secure"
	"github.com/google/uuid"
)

type AuthService interface {
	Register(ctx context.Context, cmd usecase.RegisterCmd) (usecase.AuthResult, error)
	Login(ctx context.Context, cmd usecase.LoginCmd) (usecase.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context) (int, error)
	Me(ctx context.Context) (user.User, error)
	ChangePassword(ctx context.Context, cmd usecase.ChangePasswordCmd) error
	ForgotPassword(ctx context.Context, email string)
	ResetPassword(ctx context.Context, cmd usecase.ResetPasswordCmd) error
}

// SessionManager tracks the cookie-scoped browser sessions that run in
// parallel with the refresh tokens.
type SessionManager interface {
	Create(ctx context.Context, userID uuid.UUID, email, role string, reqCtx session.RequestContext) (session.Data, error)
	Invalidate(ctx context.Context, userID uuid.UUID, sessionID string) error
	InvalidateAll(ctx context.Context, userID uuid.UUID) (int, error)
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ForgotPasswordInput struct {
	Email string `json:"email"`
}

type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type AuthResponse struct {
	User         user.User `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Handler decodes HTTP requests into service calls and encodes responses.
// It also owns the auxiliary session cookie set on register and login.
type Handler struct {
	svc      AuthService
	sessions SessionManager
	cookies  session_http.CookieConfig
}

func NewHandler(svc AuthService, sessions SessionManager, cookies session_http.CookieConfig) *Handler {
	if svc == nil || sessions == nil {
		panic("nil dependency")
	}
	return &Handler{svc: svc, sessions: sessions, cookies: cookies}
}

// Register godoc
// @Summary      Register a new account
// @Description  Creates a user and returns the record with a fresh token pair.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterInput true "registration payload"
// @Success      201 {object} AuthResponse
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input RegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Error(ctx, err).Msg("auth.Handler.Register: request json decode failed")
		httpx.ReturnError(ctx, w, err)
		return
	}
	cmd := usecase.RegisterCmd{
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      user.Role(input.Role),
		Password:  []byte(input.Password),
	}
	defer secure.ZeroBytes(cmd.Password)
	input.Password = ""

	result, err := h.svc.Register(ctx, cmd)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	h.startCookieSession(w, r, result.User)

	httpx.WriteJSON(ctx, w, http.StatusCreated, AuthResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Login godoc
// @Summary      Login
// @Description  Authenticates the user and returns a fresh token pair.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginInput true "credentials"
// @Success      200 {object} AuthResponse
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input LoginInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Error(ctx, err).Msg("auth.Handler.Login: request json decode failed")
		httpx.ReturnError(ctx, w, err)
		return
	}
	cmd := usecase.LoginCmd{
		Email:    input.Email,
		Password: []byte(input.Password),
	}
	defer secure.ZeroBytes(cmd.Password)
	input.Password = ""

	result, err := h.svc.Login(ctx, cmd)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	h.startCookieSession(w, r, result.User)

	httpx.WriteJSON(ctx, w, http.StatusOK, AuthResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Refresh godoc
// @Summary      Rotate the refresh token
// @Description  Exchanges a valid refresh token for a brand-new pair. The presented token is revoked.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshInput true "refresh token payload"
// @Success      200 {object} auth.TokenPair
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input RefreshInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Error(ctx, err).Msg("auth.Handler.Refresh: request json decode failed")
		httpx.ReturnError(ctx, w, err)
		return
	}

	pair, err := h.svc.Refresh(ctx, input.RefreshToken)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, pair)
}

// Logout godoc
// @Summary      Logout
// @Description  Revokes the refresh token. Already-revoked tokens still return success.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshInput true "refresh token payload"
// @Success      200 {object} MessageResponse
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input RefreshInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Error(ctx, err).Msg("auth.Handler.Logout: request json decode failed")
		httpx.ReturnError(ctx, w, err)
		return
	}

	if err := h.svc.Logout(ctx, input.RefreshToken); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	session_http.ClearSessionCookie(w, h.cookies)

	httpx.WriteJSON(ctx, w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll godoc
// @Summary      Logout everywhere
// @Description  Revokes every refresh token and browser session of the current user.
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} MessageResponse
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/logout-all [post]
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := h.svc.LogoutAll(ctx); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	if userID, err := contextx.GetUserID(ctx); err == nil {
		if _, err = h.sessions.InvalidateAll(ctx, userID); err != nil {
			logger.Error(ctx, err).Msg("auth.Handler.LogoutAll.sessions.InvalidateAll")
		}
	}
	session_http.ClearSessionCookie(w, h.cookies)

	httpx.WriteJSON(ctx, w, http.StatusOK, MessageResponse{Message: "logged out everywhere"})
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} user.User
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	usr, err := h.svc.Me(ctx)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, usr)
}

// ChangePassword godoc
// @Summary      Change password
// @Description  Verifies the current password, sets the new one and revokes all refresh tokens.
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body ChangePasswordInput true "password change payload"
// @Success      200 {object} MessageResponse
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input ChangePasswordInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Error(ctx, err).Msg("auth.Handler.ChangePassword: request json decode failed")
		httpx.ReturnError(ctx, w, err)
		return
	}
	cmd := usecase.ChangePasswordCmd{
		CurrentPassword: []byte(input.CurrentPassword),
		NewPassword:     []byte(input.NewPassword),
	}
	defer secure.ZeroBytes(cmd.CurrentPassword)
	defer secure.ZeroBytes(cmd.NewPassword)
	input.CurrentPassword = ""
	input.NewPassword = ""

	if err := h.svc.ChangePassword(ctx, cmd); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, MessageResponse{Message: "password changed"})
}

// ForgotPassword godoc
// @Summary      Request a password reset
// @Description  Always returns success, whether or not the email exists.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordInput true "email payload"
// @Success      200 {object} MessageResponse
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input ForgotPasswordInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Error(ctx, err).Msg("auth.Handler.ForgotPassword: request json decode failed")
		httpx.ReturnError(ctx, w, err)
		return
	}

	h.svc.ForgotPassword(ctx, input.Email)

	httpx.WriteJSON(ctx, w, http.StatusOK, MessageResponse{
		Message: "if the address exists, a reset link has been sent",
	})
}

// ResetPassword godoc
// @Summary      Reset password with a token
// @Description  Consumes the single-use reset token and sets the new password.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordInput true "reset payload"
// @Success      200 {object} MessageResponse
// @Failure      default {object} apperr.appError "Error"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input ResetPasswordInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		logger.Error(ctx, err).Msg("auth.Handler.ResetPassword: request json decode failed")
		httpx.ReturnError(ctx, w, err)
		return
	}
	cmd := usecase.ResetPasswordCmd{
		Token:       input.Token,
		NewPassword: []byte(input.NewPassword),
	}
	defer secure.ZeroBytes(cmd.NewPassword)
	input.NewPassword = ""

	if err := h.svc.ResetPassword(ctx, cmd); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, MessageResponse{Message: "password reset"})
}

// startCookieSession is best effort: a failed session write must not fail
// the login itself.
func (h *Handler) startCookieSession(w http.ResponseWriter, r *http.Request, usr user.User) {
	ctx := r.Context()

	data, err := h.sessions.Create(ctx, usr.ID, usr.Email, string(usr.Role), session_http.RequestContextOf(r))
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), usr.ID.String()).
			Msg("auth.Handler.startCookieSession.sessions.Create")
		return
	}

	session_http.SetSessionCookie(w, h.cookies, data.ID)
}
