package auth_test

import (
	"testing"
	"time"

	"github.com/crealith/authcore/internal/app/auth"
	"github.com/crealith/authcore/internal/infrastructure/system"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-0123456789abcdefghijklmnop"
	testRefreshSecret = "refresh-secret-0123456789abcdefghijklmno"
)

func codecCfg() auth.CodecConfig {
	return auth.CodecConfig{
		AccessSecret:    []byte(testAccessSecret),
		RefreshSecret:   []byte(testRefreshSecret),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		TokenVersion:    1,
	}
}

func newCodec(t *testing.T, cfg auth.CodecConfig) *auth.TokenCodec {
	t.Helper()

	codec, err := auth.NewTokenCodec(cfg, &system.UUIDv7Generator{}, &system.TimeGenerator{})
	require.NoError(t, err)

	return codec
}

func testIdentity(t *testing.T) auth.Identity {
	t.Helper()

	return auth.Identity{
		UserID: uuid.MustParse("0198c6b2-0000-7000-8000-000000000001"),
		Email:  "test@example.com",
		Role:   "buyer",
	}
}

func TestNewTokenCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*auth.CodecConfig)
		wantErr bool
	}{
		{
			name:   "success",
			mutate: func(*auth.CodecConfig) {},
		},
		{
			name:    "access secret too short",
			mutate:  func(c *auth.CodecConfig) { c.AccessSecret = []byte("short") },
			wantErr: true,
		},
		{
			name:    "refresh secret too short",
			mutate:  func(c *auth.CodecConfig) { c.RefreshSecret = []byte("short") },
			wantErr: true,
		},
		{
			name:    "secrets equal",
			mutate:  func(c *auth.CodecConfig) { c.RefreshSecret = c.AccessSecret },
			wantErr: true,
		},
		{
			name:    "zero access ttl",
			mutate:  func(c *auth.CodecConfig) { c.AccessTokenTTL = 0 },
			wantErr: true,
		},
		{
			name:    "negative refresh ttl",
			mutate:  func(c *auth.CodecConfig) { c.RefreshTokenTTL = -time.Minute },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := codecCfg()
			tt.mutate(&cfg)

			codec, err := auth.NewTokenCodec(cfg, &system.UUIDv7Generator{}, &system.TimeGenerator{})
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, codec)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, codec)
		})
	}
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := newCodec(t, codecCfg())
	id := testIdentity(t)

	accessToken, err := codec.IssueAccess(id)
	require.NoError(t, err)
	got, err := codec.VerifyAccess(accessToken)
	require.NoError(t, err)
	require.Equal(t, id, got)

	refreshToken, err := codec.IssueRefresh(id)
	require.NoError(t, err)
	got, err = codec.VerifyRefresh(refreshToken)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestTokenCodec_RefreshTokensAreUnique(t *testing.T) {
	t.Parallel()

	codec := newCodec(t, codecCfg())
	id := testIdentity(t)

	first, err := codec.IssueRefresh(id)
	require.NoError(t, err)
	second, err := codec.IssueRefresh(id)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestTokenCodec_TypeIsolation(t *testing.T) {
	t.Parallel()

	codec := newCodec(t, codecCfg())
	id := testIdentity(t)

	accessToken, err := codec.IssueAccess(id)
	require.NoError(t, err)
	refreshToken, err := codec.IssueRefresh(id)
	require.NoError(t, err)

	_, err = codec.VerifyAccess(refreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidTokenType())

	_, err = codec.VerifyRefresh(accessToken)
	require.ErrorIs(t, err, auth.ErrInvalidTokenType())
}

func TestTokenCodec_Expiry(t *testing.T) {
	t.Parallel()

	cfg := codecCfg()
	cfg.AccessTokenTTL = time.Millisecond
	cfg.RefreshTokenTTL = time.Millisecond
	codec := newCodec(t, cfg)
	id := testIdentity(t)

	accessToken, err := codec.IssueAccess(id)
	require.NoError(t, err)
	refreshToken, err := codec.IssueRefresh(id)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = codec.VerifyAccess(accessToken)
	require.ErrorIs(t, err, auth.ErrTokenExpired())

	_, err = codec.VerifyRefresh(refreshToken)
	require.ErrorIs(t, err, auth.ErrTokenExpired())
}

func TestTokenCodec_SecretIsolation(t *testing.T) {
	t.Parallel()

	codec := newCodec(t, codecCfg())

	otherCfg := codecCfg()
	otherCfg.AccessSecret = []byte("other-access-secret-0123456789abcdefgh")
	otherCfg.RefreshSecret = []byte("other-refresh-secret-0123456789abcdefg")
	otherCodec := newCodec(t, otherCfg)

	id := testIdentity(t)

	accessToken, err := codec.IssueAccess(id)
	require.NoError(t, err)
	refreshToken, err := codec.IssueRefresh(id)
	require.NoError(t, err)

	// Same token class, different key material: a forgery, not a mix-up.
	_, err = otherCodec.VerifyAccess(accessToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken())

	_, err = otherCodec.VerifyRefresh(refreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken())
}

func TestTokenCodec_VersionMismatch(t *testing.T) {
	t.Parallel()

	codec := newCodec(t, codecCfg())

	bumpedCfg := codecCfg()
	bumpedCfg.TokenVersion = 2
	bumpedCodec := newCodec(t, bumpedCfg)

	id := testIdentity(t)

	accessToken, err := codec.IssueAccess(id)
	require.NoError(t, err)
	refreshToken, err := codec.IssueRefresh(id)
	require.NoError(t, err)

	_, err = bumpedCodec.VerifyAccess(accessToken)
	require.ErrorIs(t, err, auth.ErrInvalidTokenType())

	_, err = bumpedCodec.VerifyRefresh(refreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidTokenType())
}

func TestTokenCodec_Peek(t *testing.T) {
	t.Parallel()

	codec := newCodec(t, codecCfg())
	id := testIdentity(t)

	refreshToken, err := codec.IssueRefresh(id)
	require.NoError(t, err)

	info, err := codec.Peek(refreshToken)
	require.NoError(t, err)
	require.Equal(t, id.UserID.String(), info.UserID)
	require.Equal(t, id.Email, info.Email)
	require.Equal(t, auth.TokenTypeRefresh, info.TokenType)
	require.NotEmpty(t, info.JTI)
	require.NotNil(t, info.ExpiresAt)

	_, err = codec.Peek("not-a-token")
	require.ErrorIs(t, err, auth.ErrMalformedToken())
}
