package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/crealith/authcore/internal/app/auth"
	authredis "github.com/crealith/authcore/internal/app/auth/repo/redis"
	"github.com/crealith/authcore/internal/infrastructure/redisx"
	"github.com/crealith/authcore/internal/infrastructure/system"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func lockoutCfg() authredis.Config {
	return authredis.Config{
		Lockout: authredis.LockoutConfig{
			FailureLimit:  5,
			FailureWindow: 15 * time.Minute,
			LockTTL:       15 * time.Minute,
		},
	}
}

func newRepo(t *testing.T) (*miniredis.Miniredis, auth.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := authredis.NewRepository(client, &system.TimeGenerator{}, lockoutCfg())
	require.NoError(t, err)

	return mr, repo
}

func TestRepository_RefreshTokenLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, repo := newRepo(t)
	userID := uuid.New()
	token := "header.payload.signature"

	record, err := repo.GetRefreshToken(ctx, token)
	require.NoError(t, err)
	require.Nil(t, record)

	err = repo.StoreRefreshToken(ctx, token, userID, time.Hour)
	require.NoError(t, err)

	record, err = repo.GetRefreshToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, userID, record.UserID)
	require.True(t, record.ExpiresAt.After(record.CreatedAt))

	existed, err := repo.RevokeRefreshToken(ctx, token)
	require.NoError(t, err)
	require.True(t, existed)

	record, err = repo.GetRefreshToken(ctx, token)
	require.NoError(t, err)
	require.Nil(t, record)

	// Idempotent: the second revoke reports nothing was there.
	existed, err = repo.RevokeRefreshToken(ctx, token)
	require.NoError(t, err)
	require.False(t, existed)
}

func TestRepository_StoreRefreshToken_TTLBounds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, repo := newRepo(t)
	userID := uuid.New()

	err := repo.StoreRefreshToken(ctx, "token-a", userID, 0)
	require.Error(t, err)

	err = repo.StoreRefreshToken(ctx, "token-b", userID, -time.Minute)
	require.Error(t, err)

	err = repo.StoreRefreshToken(ctx, "token-c", userID, 31*24*time.Hour)
	require.Error(t, err)

	err = repo.StoreRefreshToken(ctx, "token-d", uuid.Nil, time.Hour)
	require.Error(t, err)
}

func TestRepository_StoreRefreshToken_ExpiresWithTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, repo := newRepo(t)
	userID := uuid.New()

	err := repo.StoreRefreshToken(ctx, "short-lived", userID, time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	record, err := repo.GetRefreshToken(ctx, "short-lived")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestRepository_GetRefreshToken_MalformedRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, repo := newRepo(t)

	key, err := redisx.BuildKey(redisx.PrefixRefreshToken, "broken-token")
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, "{not json"))

	record, err := repo.GetRefreshToken(ctx, "broken-token")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestRepository_RevokeAllUserTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, repo := newRepo(t)
	userID := uuid.New()
	otherID := uuid.New()

	tokens := []string{"token-one", "token-two", "token-three"}
	for _, token := range tokens {
		require.NoError(t, repo.StoreRefreshToken(ctx, token, userID, time.Hour))
	}
	require.NoError(t, repo.StoreRefreshToken(ctx, "other-token", otherID, time.Hour))

	n, err := repo.RevokeAllUserTokens(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, len(tokens), n)

	for _, token := range tokens {
		record, getErr := repo.GetRefreshToken(ctx, token)
		require.NoError(t, getErr)
		require.Nil(t, record)
	}

	// The other user's token survives.
	record, err := repo.GetRefreshToken(ctx, "other-token")
	require.NoError(t, err)
	require.NotNil(t, record)
}

func TestRepository_ResetTokenLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, repo := newRepo(t)

	err := repo.StoreResetToken(ctx, "reset-token", "test@example.com", 25*time.Hour)
	require.Error(t, err)

	err = repo.StoreResetToken(ctx, "reset-token", "test@example.com", time.Hour)
	require.NoError(t, err)

	record, err := repo.GetResetToken(ctx, "reset-token")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "test@example.com", record.Email)

	existed, err := repo.RevokeResetToken(ctx, "reset-token")
	require.NoError(t, err)
	require.True(t, existed)

	record, err = repo.GetResetToken(ctx, "reset-token")
	require.NoError(t, err)
	require.Nil(t, record)

	existed, err = repo.RevokeResetToken(ctx, "reset-token")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestRepository_Lockout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, repo := newRepo(t)
	email := "test@example.com"

	locked, err := repo.IsLoginLocked(ctx, email)
	require.NoError(t, err)
	require.False(t, locked)

	for i := 0; i < 4; i++ {
		locked, err = repo.RegisterLoginFailure(ctx, email)
		require.NoError(t, err)
		require.False(t, locked, "attempt %d should not lock", i+1)
	}

	locked, err = repo.RegisterLoginFailure(ctx, email)
	require.NoError(t, err)
	require.True(t, locked)

	locked, err = repo.IsLoginLocked(ctx, email)
	require.NoError(t, err)
	require.True(t, locked)

	// Further failures while locked are a no-op and do not extend the lock.
	lockKey, err := redisx.BuildKey(redisx.PrefixLock, email)
	require.NoError(t, err)
	ttlBefore := mr.TTL(lockKey)

	locked, err = repo.RegisterLoginFailure(ctx, email)
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, ttlBefore, mr.TTL(lockKey))

	// The lock expires on its own.
	mr.FastForward(16 * time.Minute)
	locked, err = repo.IsLoginLocked(ctx, email)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestRepository_ResetLoginFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, repo := newRepo(t)
	email := "test@example.com"

	for i := 0; i < 5; i++ {
		_, err := repo.RegisterLoginFailure(ctx, email)
		require.NoError(t, err)
	}
	locked, err := repo.IsLoginLocked(ctx, email)
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, repo.ResetLoginFailures(ctx, email))

	locked, err = repo.IsLoginLocked(ctx, email)
	require.NoError(t, err)
	require.False(t, locked)

	// The counter restarts from zero.
	locked, err = repo.RegisterLoginFailure(ctx, email)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestBuildKey_Namespacing(t *testing.T) {
	t.Parallel()

	victimID := uuid.New().String()
	victimKey, err := redisx.BuildKey(redisx.PrefixUserTokens, victimID)
	require.NoError(t, err)

	// An attacker-chosen "email" cannot be crafted into another namespace.
	crafted := "user_tokens:" + victimID
	lockoutKey, err := redisx.BuildKey(redisx.PrefixLoginAttempts, crafted)
	require.NoError(t, err)
	require.NotEqual(t, victimKey, lockoutKey)
	require.Contains(t, lockoutKey, redisx.PrefixLoginAttempts+":")

	_, err = redisx.BuildKey("evil_prefix", "id")
	require.Error(t, err)

	_, err = redisx.BuildKey(redisx.PrefixLock, "\x00\x01//")
	require.Error(t, err)
}
