package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload carried by session tokens
type SessionClaims struct {
	jwt.RegisteredClaims
	Email           string   `json:"email,omitempty"`
	Username        string   `json:"username,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	OrganisationID  string   `json:"organisation_id,omitempty"`
	EstablishmentID string   `json:"establishment_id,omitempty"`
}

// UserID returns the subject claim
func (c *SessionClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// HasRole checks if the claims carry a specific role
func (c *SessionClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issued at time
func (c *SessionClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
