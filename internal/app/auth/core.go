package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// Store is the Redis-backed persistence surface for refresh tokens, reset
// tokens and login-failure bookkeeping. Emails passed to the lockout methods
// must already be normalized (see NormalizeLoginEmail).
type Store interface {
	StoreRefreshToken(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshTokenRecord, error)
	RevokeRefreshToken(ctx context.Context, token string) (bool, error)
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int, error)

	StoreResetToken(ctx context.Context, token, email string, ttl time.Duration) error
	GetResetToken(ctx context.Context, token string) (*ResetTokenRecord, error)
	RevokeResetToken(ctx context.Context, token string) (bool, error)

	RegisterLoginFailure(ctx context.Context, email string) (locked bool, err error)
	ResetLoginFailures(ctx context.Context, email string) error
	IsLoginLocked(ctx context.Context, email string) (bool, error)
}

// Codec is the token codec surface the core needs. The concrete TokenCodec
// in this package satisfies it.
type Codec interface {
	IssueAccess(id Identity) (string, error)
	IssueRefresh(id Identity) (string, error)
	VerifyRefresh(token string) (Identity, error)
}

type UUIDGenerator interface {
	New() (uuid.UUID, error)
}

type RNDGenerator interface {
	New(n int) (string, error)
}

type TimeGenerator interface {
	Now() time.Time
}

type generators struct {
	rndGenerator  RNDGenerator
	timeGenerator TimeGenerator
}

type Config struct {
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`
	ResetTokenTTL   time.Duration `mapstructure:"reset_token_ttl" json:"reset_token_ttl"`
}

const maxResetTokenTTL = 24 * time.Hour

type core struct {
	store      Store
	codec      Codec
	generators generators
	cfg        Config
}

func NewCore(store Store, codec Codec, rndGenerator RNDGenerator, timeGenerator TimeGenerator, cfg Config) (*core, error) {
	if cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("auth.NewCore: refresh token TTL must be positive")
	}
	if cfg.ResetTokenTTL <= 0 || cfg.ResetTokenTTL > maxResetTokenTTL {
		return nil, fmt.Errorf("auth.NewCore: reset token TTL must be in (0, %s]", maxResetTokenTTL)
	}
	if store == nil || codec == nil || rndGenerator == nil || timeGenerator == nil {
		return nil, fmt.Errorf("auth.NewCore: nil dependency")
	}

	return &core{
		store:      store,
		codec:      codec,
		generators: generators{rndGenerator, timeGenerator},
		cfg:        cfg,
	}, nil
}

// IssueTokens mints an access/refresh pair for the identity and persists the
// refresh token.
func (c *core) IssueTokens(ctx context.Context, id Identity) (TokenPair, error) {
	if id.UserID == uuid.Nil {
		return TokenPair{}, fmt.Errorf("auth.core.IssueTokens: user ID cannot be nil")
	}

	accessToken, err := c.codec.IssueAccess(id)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth.core.IssueTokens: %w", err)
	}
	refreshToken, err := c.codec.IssueRefresh(id)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth.core.IssueTokens: %w", err)
	}

	if err = c.store.StoreRefreshToken(ctx, refreshToken, id.UserID, c.cfg.RefreshTokenTTL); err != nil {
		return TokenPair{}, fmt.Errorf("auth.core.IssueTokens: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh rotates a refresh token: the presented token must verify and still
// exist in the store, a new pair is issued and stored, and only then is the
// old token deleted. A replayed token fails on the store lookup.
func (c *core) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	id, err := c.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth.core.Refresh: %w", err)
	}

	record, err := c.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth.core.Refresh: %w", err)
	}
	now := c.generators.timeGenerator.Now()
	if record == nil || !record.ExpiresAt.After(now) {
		// The record TTL and the embedded expiry are independent signals;
		// either one gone means the token is dead.
		return TokenPair{}, fmt.Errorf("auth.core.Refresh: %w", ErrTokenRevoked())
	}
	if record.UserID != id.UserID {
		logger.Security(ctx, "refresh_token_user_mismatch").
			Str(FieldUserID.String(), id.UserID.String()).
			Msg("stored refresh record belongs to a different user")
		return TokenPair{}, fmt.Errorf("auth.core.Refresh: %w", ErrTokenRevoked())
	}

	pair, err := c.IssueTokens(ctx, id)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth.core.Refresh: %w", err)
	}

	if _, err = c.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return TokenPair{}, fmt.Errorf("auth.core.Refresh: %w", err)
	}

	return pair, nil
}

// Logout revokes the refresh token, best effort. An already-revoked token is
// not an error; logout is idempotent.
func (c *core) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if _, err := c.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		logger.Error(ctx, err).Msg("auth.core.Logout: revoke failed, treating as logged out")
	}

	return nil
}

func (c *core) LogoutAll(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("auth.core.LogoutAll: user ID cannot be nil")
	}

	n, err := c.store.RevokeAllUserTokens(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("auth.core.LogoutAll: %w", err)
	}

	return n, nil
}

// CheckNotLocked fails with ErrAccountLocked while the lockout key for the
// email exists. Called before any credential comparison.
func (c *core) CheckNotLocked(ctx context.Context, email string) error {
	locked, err := c.store.IsLoginLocked(ctx, NormalizeLoginEmail(email))
	if err != nil {
		return fmt.Errorf("auth.core.CheckNotLocked: %w", err)
	}
	if locked {
		logger.Security(ctx, "login_locked").
			Str(FieldEmail.String(), logger.MaskEmail(email)).
			Msg("login attempt on locked account")
		return fmt.Errorf("auth.core.CheckNotLocked: %w", ErrAccountLocked())
	}

	return nil
}

func (c *core) RegisterLoginFailure(ctx context.Context, email string) error {
	locked, err := c.store.RegisterLoginFailure(ctx, NormalizeLoginEmail(email))
	if err != nil {
		return fmt.Errorf("auth.core.RegisterLoginFailure: %w", err)
	}
	if locked {
		logger.Security(ctx, "account_locked").
			Str(FieldEmail.String(), logger.MaskEmail(email)).
			Msg("login failure limit reached, account locked")
	}

	return nil
}

func (c *core) ResetLoginFailures(ctx context.Context, email string) error {
	if err := c.store.ResetLoginFailures(ctx, NormalizeLoginEmail(email)); err != nil {
		return fmt.Errorf("auth.core.ResetLoginFailures: %w", err)
	}

	return nil
}

// CreateResetToken stores a fresh single-use password-reset token for the
// email and returns it.
func (c *core) CreateResetToken(ctx context.Context, email string) (string, error) {
	token, err := c.generators.rndGenerator.New(32) // 32 bytes = 256 bits of entropy
	if err != nil {
		return "", fmt.Errorf("auth.core.CreateResetToken: %w", err)
	}

	if err = c.store.StoreResetToken(ctx, token, email, c.cfg.ResetTokenTTL); err != nil {
		return "", fmt.Errorf("auth.core.CreateResetToken: %w", err)
	}

	return token, nil
}

// ConsumeResetToken validates the reset token, deletes it, and returns the
// email it was issued for. A token can be consumed exactly once.
func (c *core) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	record, err := c.store.GetResetToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("auth.core.ConsumeResetToken: %w", err)
	}
	if record == nil || !record.ExpiresAt.After(c.generators.timeGenerator.Now()) {
		return "", fmt.Errorf("auth.core.ConsumeResetToken: %w", ErrResetTokenInvalid())
	}

	if _, err = c.store.RevokeResetToken(ctx, token); err != nil {
		return "", fmt.Errorf("auth.core.ConsumeResetToken: %w", err)
	}

	return record.Email, nil
}

// NormalizeLoginEmail collapses the address to the canonical form used as a
// lockout key: lowercased, a +tag stripped from the local part, and dots
// dropped from gmail-style local parts so the limiter cannot be dodged by
// address variants.
func NormalizeLoginEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]

	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	if domain == "gmail.com" || domain == "googlemail.com" {
		local = strings.ReplaceAll(local, ".", "")
	}

	return local + "@" + domain
}
