package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccessToken is what a successful authentication returns
type AccessToken struct {
	Token     string `json:"access_token"`
	ExpiresIn int    `json:"expires_in"`
}

// SessionEngine authenticates principals, mints session tokens bound to
// server side session records, and resolves presented tokens back to a
// principal.
type SessionEngine struct {
	users          UserLookup
	sessions       SessionStore
	tokenService   TokenService
	tokenValidator TokenValidator
	activitySink   ActivitySink
	logger         Logger
	now            func() time.Time
}

// NewSessionEngine returns a new SessionEngine
func NewSessionEngine(users UserLookup, sessions SessionStore, cfg Config) *SessionEngine {
	tokenService := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		defLogger{},
	)

	return &SessionEngine{
		users:        users,
		sessions:     sessions,
		tokenService: tokenService,
		logger:       defLogger{},
		now:          time.Now,
	}
}

func (e *SessionEngine) WithLogger(logger Logger) *SessionEngine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithTokenService overrides the default HS256 service
func (e *SessionEngine) WithTokenService(ts TokenService) *SessionEngine {
	if ts != nil {
		e.tokenService = ts
	}
	return e
}

// WithTokenValidator sets a custom validator for externally issued tokens.
func (e *SessionEngine) WithTokenValidator(validator TokenValidator) *SessionEngine {
	e.tokenValidator = validator
	return e
}

// WithActivitySink attaches an audit sink. Sinks run best-effort.
func (e *SessionEngine) WithActivitySink(sink ActivitySink) *SessionEngine {
	e.activitySink = sink
	return e
}

// WithClock overrides the time source, used by expiration tests
func (e *SessionEngine) WithClock(now func() time.Time) *SessionEngine {
	if now != nil {
		e.now = now
	}
	return e
}

// TokenService returns the TokenService instance used by this engine
func (e *SessionEngine) TokenService() TokenService {
	return e.tokenService
}

// Authenticate verifies the principal's password and opens a session.
// The error for a missing credential and a wrong password is the same on
// purpose; only the disabled state is distinguishable, and that check
// runs first so a disabled account never leaks credential validity.
func (e *SessionEngine) Authenticate(ctx context.Context, user *User, password string) (*AccessToken, error) {
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if user.Disabled {
		e.logger.Warn("authentication blocked for disabled account user=%s", user.ID.String())
		return nil, ErrAccountDisabled
	}

	if user.PasswordHash == "" {
		e.logger.Warn("authentication attempted against account without credential user=%s", user.ID.String())
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		e.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), nil)
		return nil, ErrInvalidCredentials
	}

	token, err := e.tokenService.Generate(user)
	if err != nil {
		e.logger.Error("failed to sign session token: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	expiration := e.sessionDuration()
	record := &SessionRecord{
		Token:          token,
		UserID:         user.ID,
		LoginDate:      e.now(),
		ExpirationDate: e.now().Add(expiration),
	}

	if _, err := e.sessions.Create(ctx, record); err != nil {
		e.logger.Error("failed to persist session record: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session record")
	}

	e.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)

	return &AccessToken{
		Token:     token,
		ExpiresIn: int(expiration.Seconds()),
	}, nil
}

// Logout deletes the session record for the given token. Best effort: a
// session that is already gone is not an error, so logout never fails
// observably for the caller.
func (e *SessionEngine) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}

	if err := e.sessions.DeleteByToken(ctx, token); err != nil {
		if !goerrors.IsNotFound(err) {
			e.logger.Warn("failed to delete session record during logout: %v", err)
		}
		return
	}

	e.emitAuthEvent(ctx, ActivityEventLogout, "", nil)
}

func (e *SessionEngine) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(e.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	event.OccurredAt = e.now()

	if err := sink.Record(ctx, event); err != nil {
		e.logger.Warn("activity sink record error: %v", err)
	}
}

// VerifyToken performs the cryptographic signature and expiry check only.
// It does not consult the session store.
func (e *SessionEngine) VerifyToken(token string) (*SessionClaims, error) {
	validator := e.tokenValidator
	if validator == nil {
		validator = e.tokenService
	}

	claims, err := validator.Validate(token)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid session token").
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}

// LoadPrincipalFromToken resolves a presented token to an enabled
// principal. Beyond the JWT's own exp claim it requires a live session
// record, so sessions revoked server side stop resolving immediately.
// Any failure from this path means "reject the request".
func (e *SessionEngine) LoadPrincipalFromToken(ctx context.Context, token string) (*User, error) {
	claims, err := e.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	record, err := e.sessions.GetByToken(ctx, token)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session record")
	}

	if !record.Active(e.now()) {
		return nil, ErrSessionExpired
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session principal")
	}

	if user.Disabled {
		return nil, ErrAccountDisabled
	}

	return user, nil
}

// HasAnyRole checks the request scoped principal for at least one of the
// named roles.
func HasAnyRole(ctx context.Context, names ...string) error {
	user, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrNoPrincipal
	}

	for _, name := range names {
		if user.HasRole(name) {
			return nil
		}
	}

	return goerrors.New("principal lacks required role", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{"roles": names})
}

// HasAllRoles checks the request scoped principal for every named role
func HasAllRoles(ctx context.Context, names ...string) error {
	user, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrNoPrincipal
	}

	for _, name := range names {
		if !user.HasRole(name) {
			return goerrors.New("principal lacks required role", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithMetadata(map[string]any{"roles": names})
		}
	}

	return nil
}

func (e *SessionEngine) sessionDuration() time.Duration {
	type expirer interface{ Expiration() time.Duration }
	if ts, ok := e.tokenService.(expirer); ok {
		return ts.Expiration()
	}
	return 24 * time.Hour
}
