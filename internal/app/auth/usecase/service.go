package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/crealith/authcore/internal/app/auth"
	"github.com/crealith/authcore/internal/app/user"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/crealith/authcore/internal/infrastructure/secure"
	"github.com/google/uuid"
)

type RegisterCmd struct {
	Email     string
	FirstName string
	LastName  string
	Role      user.Role
	Password  []byte `json:"-"`
}

type LoginCmd struct {
	Email    string
	Password []byte `json:"-"`
}

type ChangePasswordCmd struct {
	CurrentPassword []byte `json:"-"`
	NewPassword     []byte `json:"-"`
}

type ResetPasswordCmd struct {
	Token       string
	NewPassword []byte `json:"-"`
}

// AuthResult is returned by Register and Login: the sanitized user record
// plus a fresh token pair.
type AuthResult struct {
	User   user.User      `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

type Core interface {
	IssueTokens(ctx context.Context, id auth.Identity) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int, error)
	CheckNotLocked(ctx context.Context, email string) error
	RegisterLoginFailure(ctx context.Context, email string) error
	ResetLoginFailures(ctx context.Context, email string) error
	CreateResetToken(ctx context.Context, email string) (string, error)
	ConsumeResetToken(ctx context.Context, token string) (string, error)
}

type UserCore interface {
	CreateUser(ctx context.Context, req user.CreateUserReq) (user.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (user.User, string, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, string, error)
	ChangePassword(ctx context.Context, id uuid.UUID, newPassword []byte) error
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

type PasswordChecker interface {
	CheckPasswordHash(password []byte, hash string) error
}

type Service struct {
	core     Core
	userCore UserCore
	mailer   Mailer
	checker  PasswordChecker
}

func NewService(core Core, userCore UserCore, mailer Mailer, checker PasswordChecker) *Service {
	if core == nil || userCore == nil || mailer == nil || checker == nil {
		panic("nil dependency")
	}
	return &Service{core: core, userCore: userCore, mailer: mailer, checker: checker}
}

func (s *Service) Register(ctx context.Context, cmd RegisterCmd) (AuthResult, error) {
	if cmd.Role != "" && !cmd.Role.SelfAssignable() {
		err := user.ErrRoleNotSelfAssignable()
		logger.Warn(ctx, err).
			Str(user.FieldRole.String(), string(cmd.Role)).
			Msg("auth.service.Register: role not self-assignable")
		return AuthResult{}, fmt.Errorf("auth.service.Register: %w", err)
	}

	usr, err := s.userCore.CreateUser(ctx, user.CreateUserReq{
		Email:     cmd.Email,
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Role:      cmd.Role,
		Password:  cmd.Password,
	})
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(cmd.Email)).
			Msg("auth.service.Register.userCore.CreateUser")
		return AuthResult{}, fmt.Errorf("auth.service.Register: %w", err)
	}

	tokens, err := s.core.IssueTokens(ctx, identityOf(usr))
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), usr.ID.String()).
			Msg("auth.service.Register.core.IssueTokens")
		return AuthResult{}, fmt.Errorf("auth.service.Register: %w", err)
	}

	return AuthResult{User: usr, Tokens: tokens}, nil
}

// Login checks the lockout first, before any database access, and reports
// the same error for an unknown email and a wrong password.
func (s *Service) Login(ctx context.Context, cmd LoginCmd) (AuthResult, error) {
	defer secure.ZeroBytes(cmd.Password)

	if err := s.core.CheckNotLocked(ctx, cmd.Email); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(cmd.Email)).
			Msg("auth.service.Login.core.CheckNotLocked")
		return AuthResult{}, fmt.Errorf("auth.service.Login: %w", err)
	}

	usr, passwordHash, err := s.userCore.GetUserByEmail(ctx, cmd.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound()) {
			return AuthResult{}, s.failLogin(ctx, cmd.Email)
		}
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(cmd.Email)).
			Msg("auth.service.Login.userCore.GetUserByEmail")
		return AuthResult{}, fmt.Errorf("auth.service.Login: %w", err)
	}

	if err = s.checker.CheckPasswordHash(slices.Clone(cmd.Password), passwordHash); err != nil {
		return AuthResult{}, s.failLogin(ctx, cmd.Email)
	}

	if err = s.core.ResetLoginFailures(ctx, cmd.Email); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(cmd.Email)).
			Msg("auth.service.Login.core.ResetLoginFailures")
		return AuthResult{}, fmt.Errorf("auth.service.Login: %w", err)
	}

	tokens, err := s.core.IssueTokens(ctx, identityOf(usr))
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), usr.ID.String()).
			Msg("auth.service.Login.core.IssueTokens")
		return AuthResult{}, fmt.Errorf("auth.service.Login: %w", err)
	}

	return AuthResult{User: usr, Tokens: tokens}, nil
}

func (s *Service) failLogin(ctx context.Context, email string) error {
	if err := s.core.RegisterLoginFailure(ctx, email); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(email)).
			Msg("auth.service.Login.core.RegisterLoginFailure")
	}

	err := auth.ErrInvalidCredentials()
	logger.Warn(ctx, err).
		Str(user.FieldEmail.String(), logger.MaskEmail(email)).
		Msg("auth.service.Login: invalid credentials")
	return fmt.Errorf("auth.service.Login: %w", err)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	if refreshToken == "" {
		err := auth.ErrMalformedToken()
		logger.Error(ctx, err).Msg("auth.service.Refresh: empty refresh token")
		return auth.TokenPair{}, fmt.Errorf("auth.service.Refresh: %w", err)
	}

	pair, err := s.core.Refresh(ctx, refreshToken)
	if err != nil {
		logger.Error(ctx, err).
			Str(auth.FieldRefreshToken.String(), logger.MaskToken(refreshToken)).
			Msg("auth.service.Refresh.core.Refresh")
		return auth.TokenPair{}, fmt.Errorf("auth.service.Refresh: %w", err)
	}

	return pair, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.core.Logout(ctx, refreshToken); err != nil {
		return fmt.Errorf("auth.service.Logout: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context) (int, error) {
	userID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("auth.service.LogoutAll.contextx.GetUserID")
		return 0, fmt.Errorf("auth.service.LogoutAll: %w", err)
	}

	n, err := s.core.LogoutAll(ctx, userID)
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), userID.String()).
			Msg("auth.service.LogoutAll.core.LogoutAll")
		return 0, fmt.Errorf("auth.service.LogoutAll: %w", err)
	}

	return n, nil
}

func (s *Service) Me(ctx context.Context) (user.User, error) {
	userID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("auth.service.Me.contextx.GetUserID")
		return user.User{}, fmt.Errorf("auth.service.Me: %w", err)
	}

	usr, _, err := s.userCore.GetUser(ctx, userID)
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), userID.String()).
			Msg("auth.service.Me.userCore.GetUser")
		return user.User{}, fmt.Errorf("auth.service.Me: %w", err)
	}

	return usr, nil
}

// ChangePassword verifies the current password, rejects a no-op change and
// revokes every refresh token of the account, so other devices must log in
// again with the new password.
func (s *Service) ChangePassword(ctx context.Context, cmd ChangePasswordCmd) error {
	defer secure.ZeroBytes(cmd.CurrentPassword)
	defer secure.ZeroBytes(cmd.NewPassword)

	userID, err := contextx.GetUserID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("auth.service.ChangePassword.contextx.GetUserID")
		return fmt.Errorf("auth.service.ChangePassword: %w", err)
	}

	_, passwordHash, err := s.userCore.GetUser(ctx, userID)
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), userID.String()).
			Msg("auth.service.ChangePassword.userCore.GetUser")
		return fmt.Errorf("auth.service.ChangePassword: %w", err)
	}

	if err = s.checker.CheckPasswordHash(slices.Clone(cmd.CurrentPassword), passwordHash); err != nil {
		err = auth.ErrInvalidCredentials()
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), userID.String()).
			Msg("auth.service.ChangePassword: current password mismatch")
		return fmt.Errorf("auth.service.ChangePassword: %w", err)
	}
	if s.checker.CheckPasswordHash(slices.Clone(cmd.NewPassword), passwordHash) == nil {
		err = user.ErrSamePassword()
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), userID.String()).
			Msg("auth.service.ChangePassword: new password equals current")
		return fmt.Errorf("auth.service.ChangePassword: %w", err)
	}

	if err = s.userCore.ChangePassword(ctx, userID, slices.Clone(cmd.NewPassword)); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), userID.String()).
			Msg("auth.service.ChangePassword.userCore.ChangePassword")
		return fmt.Errorf("auth.service.ChangePassword: %w", err)
	}

	if _, err = s.core.LogoutAll(ctx, userID); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), userID.String()).
			Msg("auth.service.ChangePassword.core.LogoutAll")
	}

	return nil
}

// ForgotPassword always reports success to the caller. An unknown email or a
// failed delivery is logged, never surfaced, so the endpoint cannot be used
// to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	usr, _, err := s.userCore.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Warn(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(email)).
			Msg("auth.service.ForgotPassword.userCore.GetUserByEmail")
		return
	}

	token, err := s.core.CreateResetToken(ctx, usr.Email)
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(email)).
			Msg("auth.service.ForgotPassword.core.CreateResetToken")
		return
	}

	if err = s.mailer.SendPasswordReset(ctx, usr.Email, token); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(email)).
			Msg("auth.service.ForgotPassword.mailer.SendPasswordReset")
	}
}

// ResetPassword consumes the single-use token, sets the new password and
// revokes every refresh token of the account.
func (s *Service) ResetPassword(ctx context.Context, cmd ResetPasswordCmd) error {
	defer secure.ZeroBytes(cmd.NewPassword)

	email, err := s.core.ConsumeResetToken(ctx, cmd.Token)
	if err != nil {
		logger.Error(ctx, err).
			Str(auth.FieldToken.String(), logger.MaskToken(cmd.Token)).
			Msg("auth.service.ResetPassword.core.ConsumeResetToken")
		return fmt.Errorf("auth.service.ResetPassword: %w", err)
	}

	usr, _, err := s.userCore.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Error(ctx, err).
			Str(user.FieldEmail.String(), logger.MaskEmail(email)).
			Msg("auth.service.ResetPassword.userCore.GetUserByEmail")
		return fmt.Errorf("auth.service.ResetPassword: %w", auth.ErrResetTokenInvalid())
	}

	if err = s.userCore.ChangePassword(ctx, usr.ID, slices.Clone(cmd.NewPassword)); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), usr.ID.String()).
			Msg("auth.service.ResetPassword.userCore.ChangePassword")
		return fmt.Errorf("auth.service.ResetPassword: %w", err)
	}

	if _, err = s.core.LogoutAll(ctx, usr.ID); err != nil {
		logger.Error(ctx, err).
			Str(user.FieldUserID.String(), usr.ID.String()).
			Msg("auth.service.ResetPassword.core.LogoutAll")
	}

	return nil
}

func identityOf(usr user.User) auth.Identity {
	return auth.Identity{UserID: usr.ID, Email: usr.Email, Role: string(usr.Role)}
}
