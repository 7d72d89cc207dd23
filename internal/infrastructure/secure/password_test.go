package secure_test

import (
	"bytes"
	"testing"

	"github.com/crealith/authcore/internal/infrastructure/secure"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndCheck(t *testing.T) {
	t.Parallel()

	hasher := secure.NewPasswordHasher()

	hash, err := hasher.HashPassword([]byte("correct horse battery staple"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotContains(t, string(hash), "correct horse")

	require.NoError(t, hasher.CheckPasswordHash([]byte("correct horse battery staple"), string(hash)))
	require.Error(t, hasher.CheckPasswordHash([]byte("wrong password entirely"), string(hash)))
	require.Error(t, hasher.CheckPasswordHash([]byte("correct horse battery staple"), "not-a-bcrypt-hash"))
}

func TestPasswordHasher_ZeroesInput(t *testing.T) {
	t.Parallel()

	hasher := secure.NewPasswordHasher()

	password := []byte("correct horse battery staple")
	hash, err := hasher.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	require.Equal(t, make([]byte, len(password)), password, "HashPassword must scrub its input")

	checked := []byte("correct horse battery staple")
	require.NoError(t, hasher.CheckPasswordHash(checked, string(hash)))
	require.Equal(t, make([]byte, len(checked)), checked, "CheckPasswordHash must scrub its input")
}

func TestZeroBytes(t *testing.T) {
	t.Parallel()

	b := []byte{1, 2, 3}
	secure.ZeroBytes(b)
	require.True(t, bytes.Equal(b, []byte{0, 0, 0}))

	secure.ZeroBytes(nil)
}
