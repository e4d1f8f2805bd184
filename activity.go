package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventLogout               ActivityEventType = "auth.logout"
	ActivityEventActionTokenCreated   ActivityEventType = "action_token.created"
	ActivityEventActionTokenValidated ActivityEventType = "action_token.validated"
	ActivityEventActionTokenRejected  ActivityEventType = "action_token.rejected"
	ActivityEventActionTokenRevoked   ActivityEventType = "action_token.revoked"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	Actions    ActionType
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
