package identity_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes and verifies", func(t *testing.T) {
		hash, err := identity.HashPassword("secret")
		require.NoError(t, err)
		assert.NotEqual(t, "secret", hash)

		assert.NoError(t, identity.ComparePasswordAndHash("secret", hash))
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := identity.HashPassword("")
		assert.True(t, goerrors.Is(err, identity.ErrNoEmptyString))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		a, err := identity.HashPassword("secret")
		require.NoError(t, err)
		b, err := identity.HashPassword("secret")
		require.NoError(t, err)
		assert.NotEqual(t, a, b, "bcrypt salts every hash")
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := identity.HashPassword("secret")
	require.NoError(t, err)

	t.Run("mismatch", func(t *testing.T) {
		err := identity.ComparePasswordAndHash("wrong", hash)
		assert.True(t, goerrors.Is(err, identity.ErrMismatchedHashAndPassword))
	})

	t.Run("garbage hash", func(t *testing.T) {
		assert.Error(t, identity.ComparePasswordAndHash("secret", "not-a-hash"))
	})
}

func TestRandomPasswordHash(t *testing.T) {
	hash := identity.RandomPasswordHash()
	assert.NotEmpty(t, hash)
	// nobody should be able to log in with it
	assert.Error(t, identity.ComparePasswordAndHash("", hash))
}
