package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crealith/authcore/internal/app/auth"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/crealith/authcore/internal/infrastructure/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const maxRefreshTokenTTL = 30 * 24 * time.Hour

type LockoutConfig struct {
	// FailureLimit failed logins inside FailureWindow set the lock.
	FailureLimit  int           `mapstructure:"failure_limit" json:"failure_limit"`
	FailureWindow time.Duration `mapstructure:"failure_window" json:"failure_window"`
	LockTTL       time.Duration `mapstructure:"lock_ttl" json:"lock_ttl"`
}

type Config struct {
	Lockout LockoutConfig `mapstructure:"lockout" json:"lockout"`
}

type TimeGenerator interface {
	Now() time.Time
}

type repo struct {
	client  *redis.Client
	timeGen TimeGenerator
	cfg     Config
}

func NewRepository(client *redis.Client, timeGen TimeGenerator, cfg Config) (*repo, error) {
	if client == nil || timeGen == nil {
		return nil, fmt.Errorf("authredis.NewRepository: nil dependency")
	}
	if cfg.Lockout.FailureLimit <= 0 || cfg.Lockout.FailureWindow <= 0 || cfg.Lockout.LockTTL <= 0 {
		return nil, fmt.Errorf("authredis.NewRepository: invalid lockout config")
	}

	return &repo{client: client, timeGen: timeGen, cfg: cfg}, nil
}

// StoreRefreshToken writes the token record and adds the token to the
// owner's token set in one transactional batch. The set TTL is refreshed to
// the same window so it cannot outlive its youngest member by much.
func (r *repo) StoreRefreshToken(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	if ttl <= 0 || ttl > maxRefreshTokenTTL {
		return fmt.Errorf("authredis.StoreRefreshToken: ttl must be in (0, %s]", maxRefreshTokenTTL)
	}
	if userID == uuid.Nil {
		return fmt.Errorf("authredis.StoreRefreshToken: user ID cannot be nil")
	}

	tokenKey, err := redisx.BuildKey(redisx.PrefixRefreshToken, token)
	if err != nil {
		return fmt.Errorf("authredis.StoreRefreshToken: %w", err)
	}
	setKey, err := redisx.BuildKey(redisx.PrefixUserTokens, userID.String())
	if err != nil {
		return fmt.Errorf("authredis.StoreRefreshToken: %w", err)
	}

	now := r.timeGen.Now()
	record := auth.RefreshTokenRecord{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("authredis.StoreRefreshToken: %w", err)
	}
	if err = redisx.CheckValueSize(data); err != nil {
		return fmt.Errorf("authredis.StoreRefreshToken: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, tokenKey, data, ttl)
		p.SAdd(ctx, setKey, token)
		p.Expire(ctx, setKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("authredis.StoreRefreshToken: %w", err)
	}

	return nil
}

// GetRefreshToken returns the stored record or nil. A record that cannot be
// deserialized is treated as absent and reported on the security channel.
func (r *repo) GetRefreshToken(ctx context.Context, token string) (*auth.RefreshTokenRecord, error) {
	tokenKey, err := redisx.BuildKey(redisx.PrefixRefreshToken, token)
	if err != nil {
		return nil, fmt.Errorf("authredis.GetRefreshToken: %w", err)
	}

	data, err := r.client.Get(ctx, tokenKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("authredis.GetRefreshToken: %w", err)
	}

	record := auth.RefreshTokenRecord{}
	if err = json.Unmarshal(data, &record); err != nil {
		logger.Security(ctx, "malformed_stored_record").
			Str("key_prefix", redisx.PrefixRefreshToken).
			Str("token", logger.MaskToken(token)).
			Msg("stored refresh record failed to deserialize, treating as absent")
		return nil, nil
	}
	if record.UserID == uuid.Nil {
		logger.Security(ctx, "malformed_stored_record").
			Str("key_prefix", redisx.PrefixRefreshToken).
			Str("token", logger.MaskToken(token)).
			Msg("stored refresh record has no owner, treating as absent")
		return nil, nil
	}

	return &record, nil
}

func (r *repo) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	record, err := r.GetRefreshToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("authredis.RevokeRefreshToken: %w", err)
	}
	if record == nil {
		return false, nil
	}

	tokenKey, err := redisx.BuildKey(redisx.PrefixRefreshToken, token)
	if err != nil {
		return false, fmt.Errorf("authredis.RevokeRefreshToken: %w", err)
	}
	setKey, err := redisx.BuildKey(redisx.PrefixUserTokens, record.UserID.String())
	if err != nil {
		return false, fmt.Errorf("authredis.RevokeRefreshToken: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, tokenKey)
		p.SRem(ctx, setKey, token)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("authredis.RevokeRefreshToken: %w", err)
	}

	return true, nil
}

// RevokeAllUserTokens deletes every token in the user's set and the set
// itself in one batch, returning the number of token records removed.
func (r *repo) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int, error) {
	setKey, err := redisx.BuildKey(redisx.PrefixUserTokens, userID.String())
	if err != nil {
		return 0, fmt.Errorf("authredis.RevokeAllUserTokens: %w", err)
	}

	tokens, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("authredis.RevokeAllUserTokens: %w", err)
	}

	// Stale garbage in the set is skipped; deleting the set below clears it.
	keys := lo.FilterMap(tokens, func(token string, _ int) (string, bool) {
		tokenKey, buildErr := redisx.BuildKey(redisx.PrefixRefreshToken, token)
		return tokenKey, buildErr == nil
	})
	keys = append(keys, setKey)

	if err = r.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("authredis.RevokeAllUserTokens: %w", err)
	}

	return len(tokens), nil
}

// --- reset tokens ---

const maxResetTokenTTL = 24 * time.Hour

func (r *repo) StoreResetToken(ctx context.Context, token, email string, ttl time.Duration) error {
	if ttl <= 0 || ttl > maxResetTokenTTL {
		return fmt.Errorf("authredis.StoreResetToken: ttl must be in (0, %s]", maxResetTokenTTL)
	}

	key, err := redisx.BuildKey(redisx.PrefixResetToken, token)
	if err != nil {
		return fmt.Errorf("authredis.StoreResetToken: %w", err)
	}

	now := r.timeGen.Now()
	record := auth.ResetTokenRecord{
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("authredis.StoreResetToken: %w", err)
	}
	if err = redisx.CheckValueSize(data); err != nil {
		return fmt.Errorf("authredis.StoreResetToken: %w", err)
	}

	if err = r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("authredis.StoreResetToken: %w", err)
	}

	return nil
}

func (r *repo) GetResetToken(ctx context.Context, token string) (*auth.ResetTokenRecord, error) {
	key, err := redisx.BuildKey(redisx.PrefixResetToken, token)
	if err != nil {
		return nil, fmt.Errorf("authredis.GetResetToken: %w", err)
	}

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("authredis.GetResetToken: %w", err)
	}

	record := auth.ResetTokenRecord{}
	if err = json.Unmarshal(data, &record); err != nil || record.Email == "" {
		logger.Security(ctx, "malformed_stored_record").
			Str("key_prefix", redisx.PrefixResetToken).
			Str("token", logger.MaskToken(token)).
			Msg("stored reset record failed to deserialize, treating as absent")
		return nil, nil
	}

	return &record, nil
}

func (r *repo) RevokeResetToken(ctx context.Context, token string) (bool, error) {
	key, err := redisx.BuildKey(redisx.PrefixResetToken, token)
	if err != nil {
		return false, fmt.Errorf("authredis.RevokeResetToken: %w", err)
	}

	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("authredis.RevokeResetToken: %w", err)
	}

	return n > 0, nil
}

// --- login lockout ---

// RegisterLoginFailure bumps the failure counter for the email and sets the
// lock key once the limit is reached. While the lock exists the call is a
// no-op: the lock TTL is never extended by further attempts.
func (r *repo) RegisterLoginFailure(ctx context.Context, email string) (bool, error) {
	locked, err := r.IsLoginLocked(ctx, email)
	if err != nil {
		return false, fmt.Errorf("authredis.RegisterLoginFailure: %w", err)
	}
	if locked {
		return true, nil
	}

	attemptsKey, err := redisx.BuildKey(redisx.PrefixLoginAttempts, email)
	if err != nil {
		return false, fmt.Errorf("authredis.RegisterLoginFailure: %w", err)
	}

	count, err := r.client.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return false, fmt.Errorf("authredis.RegisterLoginFailure: %w", err)
	}
	if count == 1 {
		if err = r.client.Expire(ctx, attemptsKey, r.cfg.Lockout.FailureWindow).Err(); err != nil {
			return false, fmt.Errorf("authredis.RegisterLoginFailure: %w", err)
		}
	}

	if count < int64(r.cfg.Lockout.FailureLimit) {
		return false, nil
	}

	lockKey, err := redisx.BuildKey(redisx.PrefixLock, email)
	if err != nil {
		return false, fmt.Errorf("authredis.RegisterLoginFailure: %w", err)
	}
	if err = r.client.Set(ctx, lockKey, "1", r.cfg.Lockout.LockTTL).Err(); err != nil {
		return false, fmt.Errorf("authredis.RegisterLoginFailure: %w", err)
	}

	return true, nil
}

func (r *repo) ResetLoginFailures(ctx context.Context, email string) error {
	attemptsKey, err := redisx.BuildKey(redisx.PrefixLoginAttempts, email)
	if err != nil {
		return fmt.Errorf("authredis.ResetLoginFailures: %w", err)
	}
	lockKey, err := redisx.BuildKey(redisx.PrefixLock, email)
	if err != nil {
		return fmt.Errorf("authredis.ResetLoginFailures: %w", err)
	}

	if err = r.client.Del(ctx, attemptsKey, lockKey).Err(); err != nil {
		return fmt.Errorf("authredis.ResetLoginFailures: %w", err)
	}

	return nil
}

func (r *repo) IsLoginLocked(ctx context.Context, email string) (bool, error) {
	lockKey, err := redisx.BuildKey(redisx.PrefixLock, email)
	if err != nil {
		return false, fmt.Errorf("authredis.IsLoginLocked: %w", err)
	}

	n, err := r.client.Exists(ctx, lockKey).Result()
	if err != nil {
		return false, fmt.Errorf("authredis.IsLoginLocked: %w", err)
	}

	return n > 0, nil
}
