package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// actionTokenBytes gives 256 bits of entropy per token, hex encoded.
const actionTokenBytes = 32

// maxTokenAttempts bounds the collision retry loop. The backing store's
// primary key is the real uniqueness guarantee; the loop only turns a
// near-impossible event into an observable failure instead of a hang.
const maxTokenAttempts = 100

// ActionTokens owns the action token lifecycle: generation with collision
// avoidance, creation-time validation of action combinations, ownership
// and expiration checks, and revocation.
type ActionTokens struct {
	repo         ActionTokenRepository
	users        UserLookup
	roles        RoleLookup
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

// NewActionTokens creates an ActionTokens store
func NewActionTokens(repo ActionTokenRepository, users UserLookup, roles RoleLookup) *ActionTokens {
	return &ActionTokens{
		repo:   repo,
		users:  users,
		roles:  roles,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (s *ActionTokens) WithLogger(logger Logger) *ActionTokens {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink attaches an audit sink. Sinks run best-effort.
func (s *ActionTokens) WithActivitySink(sink ActivitySink) *ActionTokens {
	s.activitySink = sink
	return s
}

// WithClock overrides the time source, used by expiration tests
func (s *ActionTokens) WithClock(now func() time.Time) *ActionTokens {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateActionTokenRequest describes the token to mint. ExpiresIn is in
// hours; zero means the token never expires by time.
type CreateActionTokenRequest struct {
	Type      ActionType `json:"type"`
	Email     string     `json:"email,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Roles     []string   `json:"roles,omitempty"`
	ExpiresIn int        `json:"expires_in,omitempty"`
}

// Validate applies the structural rules that do not need a round trip
func (r CreateActionTokenRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.ExpiresIn, validation.Min(0)),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid action token request")
	}

	if !r.Type.IsValid() {
		return goerrors.New("action type must name at least one known action", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"type": int(r.Type)})
	}

	if r.Type.Has(ActionInvite) && r.Type.HasAny(PrincipalActions) {
		return goerrors.New("invite cannot be combined with actions that require an existing user", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"type": r.Type.String()})
	}

	if r.Type.Has(ActionInvite) && r.UserID != nil {
		return goerrors.New("invite tokens target an address with no account yet", goerrors.CategoryBadInput)
	}

	if r.Type.HasAny(PrincipalActions) && r.UserID == nil {
		return goerrors.New("requested actions require an existing user", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"type": r.Type.String()})
	}

	if r.Email == "" && r.UserID == nil {
		return goerrors.New("either email or user is required", goerrors.CategoryBadInput)
	}

	return nil
}

// Create validates the request, allocates a unique token string, and
// persists the record.
func (s *ActionTokens) Create(ctx context.Context, req CreateActionTokenRequest) (*ActionToken, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var userID *uuid.UUID
	if req.UserID != nil {
		user, err := s.users.GetByID(ctx, *req.UserID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return nil, goerrors.New("user for action token not found", goerrors.CategoryBadInput).
					WithMetadata(map[string]any{"user_id": req.UserID.String()})
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve action token user")
		}
		// The principal's stored address wins over any caller supplied
		// email so a token cannot be bound to a different inbox than
		// the account it acts on.
		email = strings.ToLower(user.Email)
		userID = &user.ID
	}

	if len(req.Roles) > 0 {
		if err := s.ensureRolesExist(ctx, req.Roles); err != nil {
			return nil, err
		}
	}

	token, err := s.allocateToken(ctx)
	if err != nil {
		return nil, err
	}

	record := &ActionToken{
		Token:  token,
		Type:   req.Type,
		Email:  email,
		UserID: userID,
		Roles:  req.Roles,
	}

	if req.ExpiresIn > 0 {
		expiresAt := s.now().Add(time.Duration(req.ExpiresIn) * time.Hour)
		record.ExpiresAt = &expiresAt
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist action token")
	}

	s.emitTokenEvent(ctx, ActivityEventActionTokenCreated, created)

	return created, nil
}

// ValidateActionTokenRequest presents a token for a complete operation.
// RequiredActions must ALL be present in the token's type; partial
// authorization is never sufficient.
type ValidateActionTokenRequest struct {
	Token           string     `json:"token"`
	Email           string     `json:"email"`
	RequiredActions ActionType `json:"required_actions"`
}

// Validate returns the backing record when the token exists, is bound to
// the presented email, covers every required action, and has not expired.
// Every failure surfaces as the same forbidden error; expired tokens are
// additionally deleted as a side effect.
func (s *ActionTokens) Validate(ctx context.Context, req ValidateActionTokenRequest) (*ActionToken, error) {
	record, err := s.repo.GetByToken(ctx, req.Token)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidActionToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load action token")
	}

	if record.Expired(s.now()) {
		// Proactive cleanup. A concurrent validation may have deleted
		// the row already; "already gone" is fine.
		if _, err := s.repo.DeleteByToken(ctx, record.Token); err != nil {
			s.logger.Warn("failed to delete expired action token: %v", err)
		}
		s.emitTokenEvent(ctx, ActivityEventActionTokenRejected, record)
		return nil, ErrInvalidActionToken
	}

	if !record.BoundTo(req.Email) {
		s.emitTokenEvent(ctx, ActivityEventActionTokenRejected, record)
		return nil, ErrInvalidActionToken
	}

	if !record.Type.HasAll(req.RequiredActions) {
		s.emitTokenEvent(ctx, ActivityEventActionTokenRejected, record)
		return nil, ErrInvalidActionToken
	}

	s.emitTokenEvent(ctx, ActivityEventActionTokenValidated, record)

	return record, nil
}

// Revoke deletes the token. Call it only after the action's side effect
// has been durably applied, so a consumed token never loses its effect.
func (s *ActionTokens) Revoke(ctx context.Context, token string) error {
	deleted, err := s.repo.DeleteByToken(ctx, token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke action token")
	}

	if !deleted {
		return ErrActionTokenNotFound
	}

	s.emitTokenEvent(ctx, ActivityEventActionTokenRevoked, nil)

	return nil
}

// Purge removes every expired record. Housekeeping only: safe to run
// unconditionally and repeatedly.
func (s *ActionTokens) Purge(ctx context.Context) (int, error) {
	count, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge expired action tokens")
	}

	if count > 0 {
		s.logger.Info("purged %d expired action tokens", count)
	}

	return count, nil
}

func (s *ActionTokens) emitTokenEvent(ctx context.Context, eventType ActivityEventType, record *ActionToken) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   map[string]any{},
		OccurredAt: s.now(),
	}

	if record != nil {
		event.Email = record.Email
		event.Actions = record.Type
		if record.UserID != nil {
			event.UserID = record.UserID.String()
		}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *ActionTokens) ensureRolesExist(ctx context.Context, names []string) error {
	found, err := s.roles.FindByNames(ctx, names)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve roles for action token")
	}

	byName := make(map[string]bool, len(found))
	for _, role := range found {
		if role != nil {
			byName[role.Name] = true
		}
	}

	var missing []string
	for _, name := range names {
		if !byName[name] {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return goerrors.New("unknown roles requested for action token", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"missing": missing})
	}

	return nil
}

// allocateToken generates token strings until one is absent from the
// store. The unique primary key remains the final arbiter at persist
// time; this loop is a courtesy.
func (s *ActionTokens) allocateToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := generateActionToken()
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate action token")
		}

		exists, err := s.repo.Exists(ctx, token)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check action token uniqueness")
		}

		if !exists {
			return token, nil
		}

		s.logger.Warn("action token collision, retrying attempt=%d", attempt+1)
	}

	return "", ErrTokenAllocation
}

func generateActionToken() (string, error) {
	buf := make([]byte, actionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
