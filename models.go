package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the principal model
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName       string     `bun:"first_name" json:"first_name,omitempty"`
	LastName        string     `bun:"last_name" json:"last_name,omitempty"`
	Username        string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email           string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone           string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash    string     `bun:"password_hash" json:"-"`
	EmailValidated  bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	Disabled        bool       `bun:"is_disabled" json:"is_disabled,omitempty"`
	TermsAcceptedAt *time.Time `bun:"terms_accepted_at,nullzero" json:"terms_accepted_at,omitempty"`
	PrivacyAcceptedAt *time.Time `bun:"privacy_accepted_at,nullzero" json:"privacy_accepted_at,omitempty"`
	OrganisationID  *uuid.UUID `bun:"organisation_id,nullzero,type:uuid" json:"organisation_id,omitempty"`
	EstablishmentID *uuid.UUID `bun:"establishment_id,nullzero,type:uuid" json:"establishment_id,omitempty"`
	Roles           []*Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	LoggedInAt      *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RoleNames flattens the attached roles
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// HasRole reports whether the user carries the named role
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r != nil && r.Name == name {
			return true
		}
	}
	return false
}

// Role is a named capability bundle looked up, never computed, here
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserToRole is the users<->roles join model
type UserToRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// ActionToken is a single use credential gating sensitive identity
// operations. The token string is generated server side and is the
// primary key, which makes the backing store the uniqueness authority.
type ActionToken struct {
	bun.BaseModel `bun:"table:action_tokens,alias:atk"`
	Token         string     `bun:"token,pk" json:"token,omitempty"`
	Type          ActionType `bun:"type,notnull" json:"type,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	UserID        *uuid.UUID `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Roles         []string   `bun:"roles" json:"roles,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
}

// Expired reports whether the token has a deadline in the past. A token
// without ExpiresAt never expires by time; it stays single use through
// revocation.
func (t *ActionToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// BoundTo reports whether the token is bound to the given address,
// compared case insensitively.
func (t *ActionToken) BoundTo(email string) bool {
	return strings.EqualFold(t.Email, strings.TrimSpace(email))
}

// SessionRecord binds a raw signed token to a server side session. One
// live record exists per token; deleting it revokes the session even
// while the JWT itself still verifies.
type SessionRecord struct {
	bun.BaseModel  `bun:"table:sessions,alias:ses"`
	Token          string    `bun:"token,pk" json:"token,omitempty"`
	UserID         uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	LoginDate      time.Time `bun:"login_date,notnull" json:"login_date,omitempty"`
	ExpirationDate time.Time `bun:"expiration_date,notnull" json:"expiration_date,omitempty"`
}

// Active reports whether the session is still usable
func (s *SessionRecord) Active(now time.Time) bool {
	return s.ExpirationDate.After(now)
}
