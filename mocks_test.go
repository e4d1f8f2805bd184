package identity_test

import (
	"context"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
)

// testConfig implements identity.Config
type testConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
	audience        []string
	cookieName      string
	sameSite        string
}

func defaultTestConfig() testConfig {
	return testConfig{
		signingKey:      "test-signing-key",
		tokenExpiration: 24,
		issuer:          "go-identity-test",
		audience:        []string{"go-identity-test"},
		cookieName:      "identity_session",
	}
}

func (c testConfig) GetSigningKey() string      { return c.signingKey }
func (c testConfig) GetTokenExpiration() int    { return c.tokenExpiration }
func (c testConfig) GetIssuer() string          { return c.issuer }
func (c testConfig) GetAudience() []string      { return c.audience }
func (c testConfig) GetCookieName() string      { return c.cookieName }
func (c testConfig) GetCookieSameSite() string  { return c.sameSite }

// memUsers is an in-memory identity.UserLookup
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*identity.User
}

func newMemUsers(users ...*identity.User) *memUsers {
	m := &memUsers{users: map[uuid.UUID]*identity.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
}

func (m *memUsers) Exists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) Update(_ context.Context, user *identity.User) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return user, nil
}

// memRoles is an in-memory identity.RoleLookup
type memRoles struct {
	roles map[string]*identity.Role
}

func newMemRoles(names ...string) *memRoles {
	m := &memRoles{roles: map[string]*identity.Role{}}
	for _, name := range names {
		m.roles[name] = &identity.Role{ID: uuid.New(), Name: name}
	}
	return m
}

func (m *memRoles) FindByNames(_ context.Context, names []string) ([]*identity.Role, error) {
	var out []*identity.Role
	for _, name := range names {
		if r, ok := m.roles[name]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// memActionTokens is an in-memory identity.ActionTokenRepository
type memActionTokens struct {
	mu     sync.Mutex
	tokens map[string]*identity.ActionToken

	createErr error
	existsErr error
	// existsAlways forces every allocation attempt to collide
	existsAlways bool
}

func newMemActionTokens() *memActionTokens {
	return &memActionTokens{tokens: map[string]*identity.ActionToken{}}
}

func (m *memActionTokens) Create(_ context.Context, record *identity.ActionToken) (*identity.ActionToken, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[record.Token]; ok {
		return nil, goerrors.New("duplicate token", goerrors.CategoryConflict)
	}
	m.tokens[record.Token] = record
	return record, nil
}

func (m *memActionTokens) GetByToken(_ context.Context, token string) (*identity.ActionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
}

func (m *memActionTokens) Exists(_ context.Context, token string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.existsAlways {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[token]
	return ok, nil
}

func (m *memActionTokens) DeleteByToken(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return false, nil
	}
	delete(m.tokens, token)
	return true, nil
}

func (m *memActionTokens) DeleteExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for token, record := range m.tokens {
		if record.ExpiresAt != nil && record.ExpiresAt.Before(nowForTests()) {
			delete(m.tokens, token)
			count++
		}
	}
	return count, nil
}

// memSessions is an in-memory identity.SessionStore
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*identity.SessionRecord
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*identity.SessionRecord{}}
}

func (m *memSessions) Create(_ context.Context, record *identity.SessionRecord) (*identity.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[record.Token] = record
	return record, nil
}

func (m *memSessions) GetByToken(_ context.Context, token string) (*identity.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok {
		return s, nil
	}
	return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
}

func (m *memSessions) DeleteByToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return goerrors.New("record not found", goerrors.CategoryNotFound)
	}
	delete(m.sessions, token)
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for token, record := range m.sessions {
		if !record.Active(nowForTests()) {
			delete(m.sessions, token)
			count++
		}
	}
	return count, nil
}

// memMailer records outbound mail
type memMailer struct {
	mu   sync.Mutex
	sent []sentMail

	sendErr error
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *memMailer) Send(_ context.Context, to, subject, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *memMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// quietLogger suppresses output in tests
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

// sinkRecorder collects activity events
type sinkRecorder struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (s *sinkRecorder) Record(_ context.Context, event identity.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *sinkRecorder) types() []identity.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}
