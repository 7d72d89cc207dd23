package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/crealith/authcore/internal/app/auth"
	authredis "github.com/crealith/authcore/internal/app/auth/repo/redis"
	"github.com/crealith/authcore/internal/app/auth/usecase"
	"github.com/crealith/authcore/internal/app/user"
	"github.com/crealith/authcore/internal/infrastructure/contextx"
	"github.com/crealith/authcore/internal/infrastructure/secure"
	"github.com/crealith/authcore/internal/infrastructure/system"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo is an in-memory user.Repository.
type fakeUserRepo struct {
	byID    map[uuid.UUID]fakeUserRecord
	byEmail map[string]uuid.UUID
}

type fakeUserRecord struct {
	user user.User
	hash string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    map[uuid.UUID]fakeUserRecord{},
		byEmail: map[string]uuid.UUID{},
	}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, req user.CreateUserReq, id uuid.UUID, passwordHash string) error {
	if _, ok := r.byEmail[req.Email]; ok {
		return user.ErrUserWithEmailAlreadyExists()
	}
	r.byID[id] = fakeUserRecord{
		user: user.User{ID: id, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, Role: req.Role},
		hash: passwordHash,
	}
	r.byEmail[req.Email] = id
	return nil
}

func (r *fakeUserRepo) GetUser(_ context.Context, id uuid.UUID) (user.User, string, error) {
	rec, ok := r.byID[id]
	if !ok {
		return user.User{}, "", user.ErrUserNotFound()
	}
	return rec.user, rec.hash, nil
}

func (r *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (user.User, string, error) {
	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, "", user.ErrUserNotFound()
	}
	return r.GetUser(ctx, id)
}

func (r *fakeUserRepo) ChangePassword(_ context.Context, id uuid.UUID, newPasswordHash string) error {
	rec, ok := r.byID[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	rec.hash = newPasswordHash
	r.byID[id] = rec
	return nil
}

// fakeMailer records sent reset tokens instead of delivering them.
type fakeMailer struct {
	sent map[string]string // email -> last token
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: map[string]string{}}
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.sent[to] = token
	return nil
}

func newService(t *testing.T) (*usecase.Service, *fakeMailer) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	timeGen := &system.TimeGenerator{}
	store, err := authredis.NewRepository(client, timeGen, authredis.Config{
		Lockout: authredis.LockoutConfig{
			FailureLimit:  5,
			FailureWindow: 15 * time.Minute,
			LockTTL:       15 * time.Minute,
		},
	})
	require.NoError(t, err)

	codec, err := auth.NewTokenCodec(auth.CodecConfig{
		AccessSecret:    []byte("service-test-access-secret-0123456789abcdef"),
		RefreshSecret:   []byte("service-test-refresh-secret-0123456789abcdef"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		TokenVersion:    1,
	}, &system.UUIDv7Generator{}, timeGen)
	require.NoError(t, err)

	core, err := auth.NewCore(store, codec, &system.RNDGenerator{}, timeGen, auth.Config{
		RefreshTokenTTL: time.Hour,
		ResetTokenTTL:   time.Hour,
	})
	require.NoError(t, err)

	userCore, err := user.NewCore(newFakeUserRepo(), &system.UUIDv7Generator{}, secure.NewPasswordHasher(), user.Config{
		PasswordHashCost:  bcrypt.MinCost,
		MaxNameLength:     100,
		MaxEmailLength:    255,
		MinPasswordLength: 8,
		MaxPasswordLength: 72,
	})
	require.NoError(t, err)

	mailer := newFakeMailer()
	svc := usecase.NewService(core, userCore, mailer, secure.NewPasswordHasher())

	return svc, mailer
}

func registerCmd() usecase.RegisterCmd {
	return usecase.RegisterCmd{
		Email:     "test@example.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      user.RoleBuyer,
		Password:  []byte("correct horse battery staple"),
	}
}

func loginCmd(password string) usecase.LoginCmd {
	return usecase.LoginCmd{Email: "test@example.com", Password: []byte(password)}
}

func TestService_Register_RejectsAdminRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(t)

	cmd := registerCmd()
	cmd.Role = user.RoleAdmin
	_, err := svc.Register(ctx, cmd)
	require.ErrorIs(t, err, user.ErrRoleNotSelfAssignable())

	cmd = registerCmd()
	cmd.Role = user.RoleSeller
	registered, err := svc.Register(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, user.RoleSeller, registered.User.Role)
}

func TestService_RegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(t)

	registered, err := svc.Register(ctx, registerCmd())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, registered.User.ID)
	require.NotEmpty(t, registered.Tokens.AccessToken)
	require.NotEmpty(t, registered.Tokens.RefreshToken)

	_, err = svc.Login(ctx, loginCmd("wrong password entirely"))
	require.ErrorIs(t, err, auth.ErrInvalidCredentials())

	// Unknown email fails the same way as a wrong password.
	_, err = svc.Login(ctx, usecase.LoginCmd{Email: "absent@example.com", Password: []byte("whatever password")})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials())

	result, err := svc.Login(ctx, loginCmd("correct horse battery staple"))
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, result.User.ID)

	rotated, err := svc.Refresh(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEqual(t, result.Tokens.RefreshToken, rotated.RefreshToken)

	require.NoError(t, svc.Logout(ctx, rotated.RefreshToken))
	require.NoError(t, svc.Logout(ctx, rotated.RefreshToken))

	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, auth.ErrTokenRevoked())

	_, err = svc.Refresh(ctx, "")
	require.ErrorIs(t, err, auth.ErrMalformedToken())
}

func TestService_Login_Lockout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(t)
	_, err := svc.Register(ctx, registerCmd())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = svc.Login(ctx, loginCmd("wrong password entirely"))
		require.ErrorIs(t, err, auth.ErrInvalidCredentials())
	}

	// Even the right password is refused while the lock holds.
	_, err = svc.Login(ctx, loginCmd("correct horse battery staple"))
	require.ErrorIs(t, err, auth.ErrAccountLocked())
}

func TestService_Login_ResetsFailureCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(t)
	_, err := svc.Register(ctx, registerCmd())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err = svc.Login(ctx, loginCmd("wrong password entirely"))
		require.ErrorIs(t, err, auth.ErrInvalidCredentials())
	}

	_, err = svc.Login(ctx, loginCmd("correct horse battery staple"))
	require.NoError(t, err)

	// The counter started over, so four more misses still do not lock.
	for i := 0; i < 4; i++ {
		_, err = svc.Login(ctx, loginCmd("wrong password entirely"))
		require.ErrorIs(t, err, auth.ErrInvalidCredentials())
	}
	_, err = svc.Login(ctx, loginCmd("correct horse battery staple"))
	require.NoError(t, err)
}

func TestService_LogoutAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(t)
	registered, err := svc.Register(ctx, registerCmd())
	require.NoError(t, err)

	second, err := svc.Login(ctx, loginCmd("correct horse battery staple"))
	require.NoError(t, err)

	authedCtx := contextx.SetUserID(ctx, registered.User.ID)
	n, err := svc.LogoutAll(authedCtx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = svc.Refresh(ctx, registered.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrTokenRevoked())
	_, err = svc.Refresh(ctx, second.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrTokenRevoked())

	// Without an authenticated user in the context the call is rejected.
	_, err = svc.LogoutAll(ctx)
	require.Error(t, err)
}

func TestService_Me(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(t)
	registered, err := svc.Register(ctx, registerCmd())
	require.NoError(t, err)

	usr, err := svc.Me(contextx.SetUserID(ctx, registered.User.ID))
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, usr.ID)
	require.Equal(t, "test@example.com", usr.Email)

	_, err = svc.Me(ctx)
	require.Error(t, err)
}

func TestService_ChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(t)
	registered, err := svc.Register(ctx, registerCmd())
	require.NoError(t, err)
	authedCtx := contextx.SetUserID(ctx, registered.User.ID)

	err = svc.ChangePassword(authedCtx, usecase.ChangePasswordCmd{
		CurrentPassword: []byte("wrong password entirely"),
		NewPassword:     []byte("a whole new password"),
	})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials())

	err = svc.ChangePassword(authedCtx, usecase.ChangePasswordCmd{
		CurrentPassword: []byte("correct horse battery staple"),
		NewPassword:     []byte("correct horse battery staple"),
	})
	require.ErrorIs(t, err, user.ErrSamePassword())

	err = svc.ChangePassword(authedCtx, usecase.ChangePasswordCmd{
		CurrentPassword: []byte("correct horse battery staple"),
		NewPassword:     []byte("a whole new password"),
	})
	require.NoError(t, err)

	// The old refresh token was revoked with the change.
	_, err = svc.Refresh(ctx, registered.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrTokenRevoked())

	_, err = svc.Login(ctx, loginCmd("correct horse battery staple"))
	require.ErrorIs(t, err, auth.ErrInvalidCredentials())
	result, err := svc.Login(ctx, loginCmd("a whole new password"))
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, result.User.ID)
}

func TestService_PasswordResetFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, mailer := newService(t)
	registered, err := svc.Register(ctx, registerCmd())
	require.NoError(t, err)

	// Unknown addresses do not generate mail.
	svc.ForgotPassword(ctx, "absent@example.com")
	require.Empty(t, mailer.sent)

	svc.ForgotPassword(ctx, "test@example.com")
	token, ok := mailer.sent["test@example.com"]
	require.True(t, ok)
	require.NotEmpty(t, token)

	err = svc.ResetPassword(ctx, usecase.ResetPasswordCmd{
		Token:       token,
		NewPassword: []byte("a whole new password"),
	})
	require.NoError(t, err)

	// Single use: replaying the token fails.
	err = svc.ResetPassword(ctx, usecase.ResetPasswordCmd{
		Token:       token,
		NewPassword: []byte("yet another password"),
	})
	require.ErrorIs(t, err, auth.ErrResetTokenInvalid())

	// Old sessions died with the reset, the new password logs in.
	_, err = svc.Refresh(ctx, registered.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrTokenRevoked())

	result, err := svc.Login(ctx, loginCmd("a whole new password"))
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, result.User.ID)

	err = svc.ResetPassword(ctx, usecase.ResetPasswordCmd{
		Token:       "never-issued-token",
		NewPassword: []byte("irrelevant password"),
	})
	require.ErrorIs(t, err, auth.ErrResetTokenInvalid())
}
