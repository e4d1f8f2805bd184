package identity_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		category goerrors.Category
		code     int
	}{
		{"invalid action token", identity.ErrInvalidActionToken, goerrors.CategoryAuthz, int(goerrors.CodeForbidden)},
		{"action token not found", identity.ErrActionTokenNotFound, goerrors.CategoryNotFound, int(goerrors.CodeNotFound)},
		{"token allocation", identity.ErrTokenAllocation, goerrors.CategoryInternal, int(goerrors.CodeInternal)},
		{"invalid credentials", identity.ErrInvalidCredentials, goerrors.CategoryAuth, int(goerrors.CodeUnauthorized)},
		{"account disabled", identity.ErrAccountDisabled, goerrors.CategoryConflict, int(goerrors.CodeConflict)},
		{"token expired", identity.ErrTokenExpired, goerrors.CategoryAuth, int(goerrors.CodeUnauthorized)},
		{"token malformed", identity.ErrTokenMalformed, goerrors.CategoryAuth, int(goerrors.CodeUnauthorized)},
		{"session not found", identity.ErrSessionNotFound, goerrors.CategoryAuth, int(goerrors.CodeUnauthorized)},
		{"session expired", identity.ErrSessionExpired, goerrors.CategoryAuth, int(goerrors.CodeUnauthorized)},
		{"no principal", identity.ErrNoPrincipal, goerrors.CategoryAuth, int(goerrors.CodeUnauthorized)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.category, tc.err.Category)
			assert.EqualValues(t, tc.code, tc.err.Code)
			assert.NotEmpty(t, tc.err.TextCode)
		})
	}
}

func TestInvalidActionTokenMessage(t *testing.T) {
	// the message is a contract: callers and clients match on it and it
	// must not leak which check failed
	assert.Equal(t, "invalid action token", identity.ErrInvalidActionToken.Message)
}

func TestIsTokenExpiredError(t *testing.T) {
	assert.False(t, identity.IsTokenExpiredError(nil))
	assert.True(t, identity.IsTokenExpiredError(identity.ErrTokenExpired))
	assert.False(t, identity.IsTokenExpiredError(identity.ErrTokenMalformed))
}

func TestIsMalformedError(t *testing.T) {
	assert.False(t, identity.IsMalformedError(nil))
	assert.True(t, identity.IsMalformedError(identity.ErrTokenMalformed))
	assert.False(t, identity.IsMalformedError(identity.ErrTokenExpired))
}
