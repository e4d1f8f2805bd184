package identity

import "strings"

// ActionType is a bitmask over the actions a single token may authorize.
// The integer values are persisted and part of the wire contract, so they
// are stable: new actions append at the next power of two.
type ActionType int

const (
	// ActionInvite invites an address that has no account yet
	ActionInvite ActionType = 1 << iota
	// ActionVerifyEmail confirms ownership of an email address
	ActionVerifyEmail
	// ActionAcceptTerms records acceptance of the terms of service
	ActionAcceptTerms
	// ActionAcceptPrivacy records acceptance of the privacy policy
	ActionAcceptPrivacy
	// ActionCreatePassword lets an account choose its first password
	ActionCreatePassword
	// ActionResetPassword lets an account replace a forgotten password
	ActionResetPassword
	// ActionChangeEmail moves an account to a new email address
	ActionChangeEmail
)

// actionOrder is the canonical rendering order for emails and UIs.
var actionOrder = []ActionType{
	ActionInvite,
	ActionVerifyEmail,
	ActionAcceptTerms,
	ActionAcceptPrivacy,
	ActionCreatePassword,
	ActionResetPassword,
	ActionChangeEmail,
}

var actionNames = map[ActionType]string{
	ActionInvite:         "invite",
	ActionVerifyEmail:    "verify-email",
	ActionAcceptTerms:    "accept-terms",
	ActionAcceptPrivacy:  "accept-privacy",
	ActionCreatePassword: "create-password",
	ActionResetPassword:  "reset-password",
	ActionChangeEmail:    "change-email",
}

// PrincipalActions is the subset of actions that only make sense against an
// existing account. Invite is deliberately absent: it targets an address
// that has no account yet, and the two are mutually exclusive.
const PrincipalActions = ActionVerifyEmail |
	ActionAcceptTerms |
	ActionAcceptPrivacy |
	ActionCreatePassword |
	ActionResetPassword |
	ActionChangeEmail

// Has reports whether the mask includes the given flag
func (t ActionType) Has(flag ActionType) bool {
	return t&flag == flag
}

// HasAll reports whether the mask includes every flag in required
func (t ActionType) HasAll(required ActionType) bool {
	return t&required == required
}

// HasAny reports whether the mask shares at least one flag with other
func (t ActionType) HasAny(other ActionType) bool {
	return t&other != 0
}

// With returns the mask with the given flags added
func (t ActionType) With(flags ActionType) ActionType {
	return t | flags
}

// Without returns the mask with the given flags removed
func (t ActionType) Without(flags ActionType) ActionType {
	return t &^ flags
}

// IsZero reports whether no action is set
func (t ActionType) IsZero() bool {
	return t == 0
}

// IsValid reports whether the mask only uses known flags and is not empty
func (t ActionType) IsValid() bool {
	return t != 0 && t.Without(ActionInvite|PrincipalActions) == 0
}

// Actions expands the mask into single-flag values in canonical order
func (t ActionType) Actions() []ActionType {
	out := make([]ActionType, 0, len(actionOrder))
	for _, flag := range actionOrder {
		if t.Has(flag) {
			out = append(out, flag)
		}
	}
	return out
}

func (t ActionType) String() string {
	if t == 0 {
		return "none"
	}

	parts := make([]string, 0, len(actionOrder))
	for _, flag := range t.Actions() {
		parts = append(parts, actionNames[flag])
	}

	if rest := t.Without(ActionInvite | PrincipalActions); rest != 0 {
		parts = append(parts, "unknown")
	}

	return strings.Join(parts, "|")
}

// ParseAction maps a single action name back to its flag
func ParseAction(name string) (ActionType, bool) {
	for flag, n := range actionNames {
		if n == name {
			return flag, true
		}
	}
	return 0, false
}
