// Package identity provides account authentication primitives: bcrypt
// password checks bound to server-side sessions, JWT issuance and
// verification, and single-use action tokens for email-delivered flows.
//
// Action tokens:
//   - ActionType is a bitmask describing what a token lets its holder do
//     (invite, verify email, accept terms, reset password, and so on).
//     ActionTokens issues crypto-random tokens bound to an email address
//     and validates them as an all-or-nothing gate: every failure mode is
//     reported as the same "invalid action token" error so callers leak
//     nothing about why a token was rejected.
//
// Sessions:
//   - SessionEngine authenticates a user against their stored hash, signs
//     a JWT and records a matching server-side session. Token verification
//     is stateless; LoadPrincipalFromToken additionally requires the
//     server-side session to exist and still be active, so revoking a
//     session invalidates tokens that would otherwise verify.
//
// Commands:
//   - The command_*.go handlers orchestrate multi-step flows (invite a
//     user, finalize an invite, finalize a password reset) inside a single
//     transaction: a typed message with an optional OnResponse callback
//     and a handler with Execute.
package identity
