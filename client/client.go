package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
)

// DefaultCookieName matches the server side session cookie
const DefaultCookieName = identity.DefaultCookieName

// DefaultTimeout bounds the account lookup during Initialize
const DefaultTimeout = 10 * time.Second

const storageTokenKey = "identity:token"

// Principal is the account view returned by the identity server
type Principal struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// HasRole reports if the principal carries the given role
func (p *Principal) HasRole(name string) bool {
	if p == nil {
		return false
	}
	for _, role := range p.Roles {
		if role == name {
			return true
		}
	}
	return false
}

// Subscriber is notified when the cached principal identity changes
type Subscriber func(p *Principal)

// Config drives Initialize. BaseURL is required, everything else has a
// working default.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Headers    map[string]string
	CookieName string
	Storage    Storage
	HTTPClient *http.Client
	Logger     identity.Logger
}

// AuthState caches the session token and the resolved principal for a
// client process. All three token surfaces (memory, cookie jar,
// storage) converge through SetToken and Token.
type AuthState struct {
	mu sync.Mutex

	baseURL     *url.URL
	cookieName  string
	headers     map[string]string
	storage     Storage
	http        *http.Client
	logger      identity.Logger
	configured  bool
	initialized bool

	token     string
	principal *Principal

	subscribers map[int]Subscriber
	nextSub     int
}

// NewAuthState returns an empty, uninitialized cache
func NewAuthState() *AuthState {
	return &AuthState{
		cookieName:  DefaultCookieName,
		logger:      defLogger{},
		subscribers: map[int]Subscriber{},
	}
}

var (
	defaultState *AuthState
	defaultOnce  sync.Once
)

// Default returns the process wide cache
func Default() *AuthState {
	defaultOnce.Do(func() {
		defaultState = NewAuthState()
	})
	return defaultState
}

// Initialize configures the cache and resolves the current principal
// from the identity server. It is idempotent: once a principal has been
// resolved further calls return it without touching the network.
//
// A missing token or a failed account lookup is not an error, the cache
// is cleared and a nil principal returned.
func (s *AuthState) Initialize(ctx context.Context, cfg Config) (*Principal, error) {
	s.mu.Lock()

	// re-invocation re-applies configuration before anything else
	if err := s.configure(cfg); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if s.initialized && s.principal != nil {
		p := s.principal
		s.mu.Unlock()
		return p, nil
	}

	token := s.resolveToken()
	baseURL := s.baseURL.String()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpc := s.http
	headers := s.headers
	s.mu.Unlock()

	if token == "" {
		s.Clear()
		return nil, nil
	}

	principal, err := fetchAccount(ctx, httpc, baseURL, token, headers, timeout)
	if err != nil {
		s.logger.Warn("account lookup failed: %v", err)
		s.Clear()
		return nil, nil
	}

	s.SetToken(token)
	s.SetPrincipal(principal)

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	return principal, nil
}

func (s *AuthState) configure(cfg Config) error {
	if cfg.BaseURL == "" {
		return errors.New("base URL is required", errors.CategoryBadInput)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "invalid base URL")
	}

	s.baseURL = u
	s.headers = cfg.Headers

	if cfg.CookieName != "" {
		s.cookieName = cfg.CookieName
	}

	if cfg.Storage != nil {
		s.storage = cfg.Storage
	}

	if cfg.Logger != nil {
		s.logger = cfg.Logger
	}

	s.http = cfg.HTTPClient
	if s.http == nil {
		s.http = &http.Client{}
	}

	if s.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create cookie jar")
		}
		s.http.Jar = jar
	}

	s.configured = true

	return nil
}

// BaseURL returns the configured server address. It errors until
// Initialize has configured the cache; a signed out client that
// initialized without a token still gets the address back.
func (s *AuthState) BaseURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured || s.baseURL == nil {
		return "", errors.New("client auth state not initialized", errors.CategoryConflict)
	}

	return s.baseURL.String(), nil
}

// Token resolves the session token, checking memory first, the cookie
// jar second and storage last. A hit on a later surface is written back
// to the earlier ones so they converge.
func (s *AuthState) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveToken()
}

// resolveToken must be called with the lock held
func (s *AuthState) resolveToken() string {
	if s.token != "" {
		return s.token
	}

	if token := s.cookieToken(); token != "" {
		s.writeToken(token)
		return token
	}

	if s.storage != nil {
		token, err := s.storage.Get(storageTokenKey)
		if err != nil {
			s.logger.Warn("token storage read failed: %v", err)
		} else if token != "" {
			s.writeToken(token)
			return token
		}
	}

	return ""
}

// SetToken is the single writer for every token surface. An empty token
// clears all of them; clearing an unset token is not an error.
func (s *AuthState) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeToken(token)
}

// writeToken must be called with the lock held
func (s *AuthState) writeToken(token string) {
	s.token = token
	s.setCookieToken(token)

	if s.storage == nil {
		return
	}

	var err error
	if token == "" {
		err = s.storage.Delete(storageTokenKey)
	} else {
		err = s.storage.Set(storageTokenKey, token)
	}

	if err != nil {
		s.logger.Warn("token storage write failed: %v", err)
	}
}

func (s *AuthState) cookieToken() string {
	if s.http == nil || s.http.Jar == nil || s.baseURL == nil {
		return ""
	}

	for _, cookie := range s.http.Jar.Cookies(s.baseURL) {
		if cookie.Name == s.cookieName {
			return cookie.Value
		}
	}

	return ""
}

func (s *AuthState) setCookieToken(token string) {
	if s.http == nil || s.http.Jar == nil || s.baseURL == nil {
		return
	}

	cookie := &http.Cookie{
		Name:  s.cookieName,
		Value: token,
		Path:  "/",
	}

	if token == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	}

	s.http.Jar.SetCookies(s.baseURL, []*http.Cookie{cookie})
}

// Principal returns the cached principal, nil when signed out
func (s *AuthState) Principal() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// SetPrincipal replaces the cached principal. Subscribers are notified
// only when the principal identity actually changes; a panicking
// subscriber never takes down its peers or skips the rest.
func (s *AuthState) SetPrincipal(p *Principal) {
	s.mu.Lock()

	changed := principalID(s.principal) != principalID(p)
	s.principal = p

	var subs []Subscriber
	if changed {
		subs = make([]Subscriber, 0, len(s.subscribers))
		for _, sub := range s.subscribers {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.notify(sub, p)
	}
}

func (s *AuthState) notify(sub Subscriber, p *Principal) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("principal subscriber panicked: %v", r)
		}
	}()
	sub(p)
}

// OnPrincipalChange registers a subscriber and returns its unsubscribe
// function
func (s *AuthState) OnPrincipalChange(sub Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = sub

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// OffPrincipalChange removes a previously registered subscriber by
// callback identity. The unsubscribe function returned by
// OnPrincipalChange is the preferred removal path; this exists for
// callers that only kept the callback around.
func (s *AuthState) OffPrincipalChange(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := reflect.ValueOf(sub).Pointer()
	for id, registered := range s.subscribers {
		if reflect.ValueOf(registered).Pointer() == target {
			delete(s.subscribers, id)
		}
	}
}

// Clear drops the token from every surface, then the principal
func (s *AuthState) Clear() {
	s.SetToken("")
	s.SetPrincipal(nil)
}

func principalID(p *Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}

func fetchAccount(ctx context.Context, httpc *http.Client, baseURL, token string, headers map[string]string, timeout time.Duration) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.TrimSuffix(baseURL, "/") + "/auth/account"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build account request")
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "account request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.New("account request rejected", errors.CategoryAuth).
			WithMetadata(map[string]any{
				"status": res.StatusCode,
			})
	}

	principal := &Principal{}
	if err := json.NewDecoder(res.Body).Decode(principal); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode account response")
	}

	return principal, nil
}

// Package level wrappers over the default cache.

func Initialize(ctx context.Context, cfg Config) (*Principal, error) {
	return Default().Initialize(ctx, cfg)
}

func Token() string { return Default().Token() }

func SetToken(token string) { Default().SetToken(token) }

func GetPrincipal() *Principal { return Default().Principal() }

func SetPrincipal(p *Principal) { Default().SetPrincipal(p) }

func OnPrincipalChange(sub Subscriber) func() { return Default().OnPrincipalChange(sub) }

func OffPrincipalChange(sub Subscriber) { Default().OffPrincipalChange(sub) }

func Clear() { Default().Clear() }

func BaseURL() (string, error) { return Default().BaseURL() }

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CLIENT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CLIENT "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CLIENT "+newline(format), args...)
}

func newline(format string) string {
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	return format
}
