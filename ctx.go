package identity

import "context"

var principalCtxKey = &contextKey{"principal"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithPrincipal sets the authenticated User in the given context. The
// principal is request scoped and never shared across requests.
func WithPrincipal(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, principalCtxKey, user)
}

// PrincipalFromContext finds the authenticated user from the context.
func PrincipalFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*User)
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

// DetachPrincipal returns a context with no principal attached
func DetachPrincipal(ctx context.Context) context.Context {
	return context.WithValue(ctx, principalCtxKey, (*User)(nil))
}

// WithClaims sets the SessionClaims in the given context
func WithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext extracts the SessionClaims from the context
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok
}
