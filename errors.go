package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// ErrInvalidActionToken is returned for every action token validation
// failure. Wrong token, wrong owner, and (usually) expired all collapse
// into the same message so callers cannot probe which check failed.
var ErrInvalidActionToken = errors.New("invalid action token", errors.CategoryAuthz).
	WithTextCode("INVALID_ACTION_TOKEN").
	WithCode(errors.CodeForbidden)

// ErrActionTokenNotFound is returned when revoking a token that is absent
var ErrActionTokenNotFound = errors.New("action token not found", errors.CategoryNotFound).
	WithTextCode("ACTION_TOKEN_NOT_FOUND").
	WithCode(errors.CodeNotFound)

// ErrTokenAllocation is returned when token generation keeps colliding
var ErrTokenAllocation = errors.New("unable to allocate a unique token", errors.CategoryInternal).
	WithTextCode("TOKEN_ALLOCATION").
	WithCode(errors.CodeInternal)

// ErrInvalidCredentials deliberately covers both unknown accounts and wrong
// passwords so login responses cannot be used for account enumeration.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(errors.CodeUnauthorized)

// ErrAccountDisabled is returned when a disabled account tries to act
var ErrAccountDisabled = errors.New("account is disabled", errors.CategoryConflict).
	WithTextCode("ACCOUNT_DISABLED").
	WithCode(errors.CodeConflict)

// ErrTokenExpired marks a session token whose exp claim has passed
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed marks a session token that fails parsing or signature
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(errors.CodeUnauthorized)

// ErrSessionNotFound marks a verified token with no backing session record
var ErrSessionNotFound = errors.New("session not found", errors.CategoryAuth).
	WithTextCode("SESSION_NOT_FOUND").
	WithCode(errors.CodeUnauthorized)

// ErrSessionExpired marks a session record revoked or past its expiration.
// This check is independent of the JWT exp claim: a session can be cut
// server side while its token still verifies.
var ErrSessionExpired = errors.New("session expired", errors.CategoryAuth).
	WithTextCode("SESSION_EXPIRED").
	WithCode(errors.CodeUnauthorized)

// ErrNoPrincipal is returned by role checks when no principal is attached
var ErrNoPrincipal = errors.New("no principal attached to request", errors.CategoryAuth).
	WithTextCode("NO_PRINCIPAL").
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the internal bcrypt mismatch marker
var ErrMismatchedHashAndPassword = errors.New("hashed password does not match", errors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("value should not be an empty string", errors.CategoryBadInput).
	WithTextCode("EMPTY_STRING")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
