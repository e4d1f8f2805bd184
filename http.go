package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// DefaultCookieName is the session cookie used when Config leaves it empty
const DefaultCookieName = "identity_session"

// LoginPayload is the credential pair presented to Login
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// RouteSessions wires the SessionEngine to the HTTP surface: it keeps the
// session cookie in sync with issued tokens and attaches the resolved
// principal to the request context.
type RouteSessions struct {
	engine         *SessionEngine
	users          UserLookup
	cfg            Config
	cookieDuration time.Duration
	Logger         Logger
	ErrorHandler   func(c router.Context, err error) error
}

// NewRouteSessions returns a RouteSessions over the given engine
func NewRouteSessions(engine *SessionEngine, users UserLookup, cfg Config) *RouteSessions {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	r := &RouteSessions{
		engine:         engine,
		users:          users,
		cfg:            cfg,
		cookieDuration: cookieDuration,
		Logger:         defLogger{},
	}

	r.ErrorHandler = r.defaultErrHandler

	return r
}

func (a RouteSessions) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// Login authenticates the payload and synchronizes cookie and request
// context. An unknown identifier and a wrong password produce the same
// error.
func (a *RouteSessions) Login(c router.Context, payload LoginPayload) error {
	user, err := a.users.FindByEmail(c.Context(), strings.ToLower(payload.GetIdentifier()))
	if err != nil && !errors.IsNotFound(err) {
		a.Logger.Error("Login user lookup error: %v", err)
		return errors.Wrap(err, errors.CategoryInternal, "failed to resolve login identifier")
	}

	access, err := a.engine.Authenticate(c.Context(), user, payload.GetPassword())
	if err != nil {
		a.Logger.Warn("Login rejected: %v", err)
		return err
	}

	a.setCookieToken(c, access.Token, a.cookieDuration)
	c.SetContext(WithPrincipal(c.Context(), user))

	return nil
}

// Logout tears the session down. Best effort and idempotent: the cookie
// is always cleared and the principal always detached, even when no
// session record was found for the presented token.
func (a *RouteSessions) Logout(c router.Context) {
	token := a.TokenFromRequest(c)

	a.engine.Logout(c.Context(), token)

	a.cookieDel(c, a.cookieName())
	c.SetContext(DetachPrincipal(c.Context()))
}

// RequireSession resolves the presented token to a principal and attaches
// it to the request context, rejecting the request otherwise.
func (a *RouteSessions) RequireSession() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token := a.TokenFromRequest(c)
			if token == "" {
				return a.ErrorHandler(c, ErrSessionNotFound)
			}

			user, err := a.engine.LoadPrincipalFromToken(c.Context(), token)
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			c.SetContext(WithPrincipal(c.Context(), user))

			return next(c)
		}
	}
}

// TokenFromRequest extracts the raw session token, Authorization header
// first, session cookie as fallback.
func (a *RouteSessions) TokenFromRequest(c router.Context) string {
	header := c.GetString("Authorization", "")
	scheme := "Bearer"
	if len(header) > len(scheme)+1 && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}

	return c.Cookies(a.cookieName())
}

func (a *RouteSessions) cookieName() string {
	if name := a.cfg.GetCookieName(); name != "" {
		return name
	}
	return DefaultCookieName
}

func (a *RouteSessions) sameSite() string {
	// Strict unless the deployment needs cross site redirect flows.
	switch strings.ToLower(a.cfg.GetCookieSameSite()) {
	case "lax":
		return "Lax"
	default:
		return "Strict"
	}
}

func (a *RouteSessions) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cookieName(),
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: a.sameSite(),
	})
}

func (a *RouteSessions) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: a.sameSite(),
	})
}

func (a *RouteSessions) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Session error handler %s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	code := richErr.Code
	if code == 0 {
		code = http.StatusUnauthorized
	}

	return c.Status(code).SendString(richErr.Message)
}
