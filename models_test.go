package identity_test

import (
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestActionTokenExpired(t *testing.T) {
	now := testEpoch

	t.Run("no deadline never expires", func(t *testing.T) {
		token := &identity.ActionToken{}
		assert.False(t, token.Expired(now))
	})

	t.Run("future deadline", func(t *testing.T) {
		future := now.Add(time.Hour)
		token := &identity.ActionToken{ExpiresAt: &future}
		assert.False(t, token.Expired(now))
	})

	t.Run("past deadline", func(t *testing.T) {
		past := now.Add(-time.Hour)
		token := &identity.ActionToken{ExpiresAt: &past}
		assert.True(t, token.Expired(now))
	})
}

func TestActionTokenBoundTo(t *testing.T) {
	token := &identity.ActionToken{Email: "owner@example.com"}

	assert.True(t, token.BoundTo("owner@example.com"))
	assert.True(t, token.BoundTo("OWNER@EXAMPLE.COM"))
	assert.True(t, token.BoundTo("  owner@example.com  "))
	assert.False(t, token.BoundTo("other@example.com"))
}

func TestUserRoles(t *testing.T) {
	user := &identity.User{
		ID: uuid.New(),
		Roles: []*identity.Role{
			{Name: "admin"},
			nil,
			{Name: "editor"},
		},
	}

	assert.Equal(t, []string{"admin", "editor"}, user.RoleNames())
	assert.True(t, user.HasRole("admin"))
	assert.False(t, user.HasRole("viewer"))
}

func TestSessionRecordActive(t *testing.T) {
	record := &identity.SessionRecord{
		ExpirationDate: testEpoch.Add(time.Hour),
	}

	assert.True(t, record.Active(testEpoch))
	assert.False(t, record.Active(testEpoch.Add(2*time.Hour)))
	assert.False(t, record.Active(record.ExpirationDate), "boundary is exclusive")
}
