package identity_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type loginPayloadStub struct {
	identifier string
	password   string
}

func (p loginPayloadStub) GetIdentifier() string { return p.identifier }
func (p loginPayloadStub) GetPassword() string   { return p.password }

func newTestRouteSessions(t *testing.T, cfg testConfig) (*identity.RouteSessions, *identity.User, *memSessions) {
	t.Helper()
	user := authTestUser(t)
	users := newMemUsers(user)
	sessions := newMemSessions()
	engine := identity.NewSessionEngine(users, sessions, cfg).
		WithLogger(quietLogger{})

	rs := identity.NewRouteSessions(engine, users, cfg)
	rs.Logger = quietLogger{}
	return rs, user, sessions
}

func TestRouteSessionsLogin(t *testing.T) {
	t.Run("success sets the session cookie and principal", func(t *testing.T) {
		rs, user, _ := newTestRouteSessions(t, defaultTestConfig())

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Return()
		ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
			return c.Name == "identity_session" &&
				c.Value != "" &&
				c.Path == "/" &&
				c.HTTPOnly &&
				c.SameSite == "Strict"
		})).Return()

		err := rs.Login(ctx, loginPayloadStub{
			identifier: user.Email,
			password:   testPassword,
		})
		require.NoError(t, err)
		ctx.AssertExpectations(t)
	})

	t.Run("lax same site comes from config", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.sameSite = "lax"
		rs, user, _ := newTestRouteSessions(t, cfg)

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Return()
		ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
			return c.SameSite == "Lax"
		})).Return()

		err := rs.Login(ctx, loginPayloadStub{
			identifier: user.Email,
			password:   testPassword,
		})
		require.NoError(t, err)
	})

	t.Run("unknown identifier and bad password are the same error", func(t *testing.T) {
		rs, user, _ := newTestRouteSessions(t, defaultTestConfig())

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())

		errUnknown := rs.Login(ctx, loginPayloadStub{
			identifier: "nobody@example.com",
			password:   testPassword,
		})
		errWrong := rs.Login(ctx, loginPayloadStub{
			identifier: user.Email,
			password:   "wrong-password",
		})

		require.Error(t, errUnknown)
		require.Error(t, errWrong)
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
		assert.True(t, goerrors.Is(errUnknown, identity.ErrInvalidCredentials))
	})
}

func TestRouteSessionsLogout(t *testing.T) {
	rs, user, sessions := newTestRouteSessions(t, defaultTestConfig())

	// open a real session first
	loginCtx := router.NewMockContext()
	loginCtx.On("Context").Return(context.Background())
	loginCtx.On("SetContext", mock.Anything).Return()

	var token string
	loginCtx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		token = args.Get(0).(*router.Cookie).Value
	}).Return()

	require.NoError(t, rs.Login(loginCtx, loginPayloadStub{
		identifier: user.Email,
		password:   testPassword,
	}))
	require.NotEmpty(t, token)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything).Return()
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		// deletion writes an empty value with an expiry in the past
		return c.Name == "identity_session" && c.Value == ""
	})).Return()

	rs.Logout(ctx)

	_, err := sessions.GetByToken(context.Background(), token)
	assert.True(t, goerrors.IsNotFound(err))

	// a second logout with the same, now dead, token still succeeds
	rs.Logout(ctx)
}

func TestRouteSessionsRequireSession(t *testing.T) {
	passthroughErr := func(c router.Context, err error) error { return err }

	t.Run("valid bearer token reaches the handler", func(t *testing.T) {
		rs, user, _ := newTestRouteSessions(t, defaultTestConfig())
		rs.ErrorHandler = passthroughErr

		loginCtx := router.NewMockContext()
		loginCtx.On("Context").Return(context.Background())
		loginCtx.On("SetContext", mock.Anything).Return()

		var token string
		loginCtx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
			token = args.Get(0).(*router.Cookie).Value
		}).Return()

		require.NoError(t, rs.Login(loginCtx, loginPayloadStub{
			identifier: user.Email,
			password:   testPassword,
		}))

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Return()
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)

		called := false
		handler := rs.RequireSession()(func(c router.Context) error {
			called = true
			return nil
		})

		require.NoError(t, handler(ctx))
		assert.True(t, called)
	})

	t.Run("missing token is rejected before the handler", func(t *testing.T) {
		rs, _, _ := newTestRouteSessions(t, defaultTestConfig())
		rs.ErrorHandler = passthroughErr

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")
		ctx.On("Cookies", "identity_session").Return("")

		called := false
		handler := rs.RequireSession()(func(c router.Context) error {
			called = true
			return nil
		})

		err := handler(ctx)
		assert.True(t, goerrors.Is(err, identity.ErrSessionNotFound))
		assert.False(t, called)
	})

	t.Run("token without a live session is rejected", func(t *testing.T) {
		rs, user, sessions := newTestRouteSessions(t, defaultTestConfig())
		rs.ErrorHandler = passthroughErr

		loginCtx := router.NewMockContext()
		loginCtx.On("Context").Return(context.Background())
		loginCtx.On("SetContext", mock.Anything).Return()

		var token string
		loginCtx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
			token = args.Get(0).(*router.Cookie).Value
		}).Return()

		require.NoError(t, rs.Login(loginCtx, loginPayloadStub{
			identifier: user.Email,
			password:   testPassword,
		}))

		require.NoError(t, sessions.DeleteByToken(context.Background(), token))

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)

		err := rs.RequireSession()(func(c router.Context) error { return nil })(ctx)
		assert.True(t, goerrors.Is(err, identity.ErrSessionNotFound))
	})
}

func TestTokenFromRequest(t *testing.T) {
	rs, _, _ := newTestRouteSessions(t, defaultTestConfig())

	t.Run("authorization header wins", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer the-token")

		assert.Equal(t, "the-token", rs.TokenFromRequest(ctx))
	})

	t.Run("cookie fallback", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")
		ctx.On("Cookies", "identity_session").Return("cookie-token")

		assert.Equal(t, "cookie-token", rs.TokenFromRequest(ctx))
	})

	t.Run("malformed scheme falls through to cookie", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Basic dXNlcjpwYXNz")
		ctx.On("Cookies", "identity_session").Return("")

		assert.Equal(t, "", rs.TokenFromRequest(ctx))
	})
}
