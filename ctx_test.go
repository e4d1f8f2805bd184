package identity_test

import (
	"context"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalContext(t *testing.T) {
	user := &identity.User{ID: uuid.New(), Email: "pepe.rone@example.com"}

	t.Run("round trip", func(t *testing.T) {
		ctx := identity.WithPrincipal(context.Background(), user)

		got, ok := identity.PrincipalFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("empty context", func(t *testing.T) {
		got, ok := identity.PrincipalFromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("detach", func(t *testing.T) {
		ctx := identity.WithPrincipal(context.Background(), user)
		ctx = identity.DetachPrincipal(ctx)

		got, ok := identity.PrincipalFromContext(ctx)
		assert.False(t, ok)
		assert.Nil(t, got)
	})
}

func TestClaimsContext(t *testing.T) {
	claims := &identity.SessionClaims{Email: "pepe.rone@example.com"}

	ctx := identity.WithClaims(context.Background(), claims)

	got, ok := identity.ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, claims.Email, got.Email)

	_, ok = identity.ClaimsFromContext(context.Background())
	assert.False(t, ok)
}
