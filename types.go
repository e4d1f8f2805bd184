package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds engine options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetCookieName() string
	GetCookieSameSite() string
}

// UserLookup is the external user capability the core consumes. CRUD
// persistence itself lives behind this interface; the core only resolves,
// checks, and patches principals.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Exists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *User) (*User, error)
}

// RoleLookup resolves role names to role records. FindByNames must return
// exactly one record per requested name; the caller treats a shortfall as
// invalid input.
type RoleLookup interface {
	FindByNames(ctx context.Context, names []string) ([]*Role, error)
}

// Mailer is the outbound mail-delivery capability. Delivery failures are
// the orchestrating flow's concern, not the token store's.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SessionStore owns session record persistence
type SessionStore interface {
	Create(ctx context.Context, record *SessionRecord) (*SessionRecord, error)
	GetByToken(ctx context.Context, token string) (*SessionRecord, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int, error)
}

// ActionTokenRepository owns action token persistence. DeleteByToken
// reports whether a row was actually removed so callers can tolerate
// benign double deletes.
type ActionTokenRepository interface {
	Create(ctx context.Context, record *ActionToken) (*ActionToken, error)
	GetByToken(ctx context.Context, token string) (*ActionToken, error)
	Exists(ctx context.Context, token string) (bool, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context) (int, error)
}

// TokenService signs and validates session JWTs
type TokenService interface {
	Generate(user *User) (string, error)
	Validate(token string) (*SessionClaims, error)
}

// TokenValidator validates externally issued session tokens
type TokenValidator interface {
	Validate(token string) (*SessionClaims, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
