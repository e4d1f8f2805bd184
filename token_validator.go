package identity

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// JWKSValidator validates session tokens issued by an external identity
// provider, resolving signing keys from its JWK Set endpoint. Plug it
// into the engine with WithTokenValidator.
type JWKSValidator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience []string
	logger   Logger
}

// JWKSConfig configures a JWKSValidator
type JWKSConfig struct {
	// URL of the JWK Set endpoint
	URL string
	// Issuer to require on validated tokens; empty skips the check
	Issuer string
	// Audience values to require; empty skips the check
	Audience []string
	// RefreshInterval between background key refreshes. Zero uses one hour.
	RefreshInterval time.Duration
}

// NewJWKSValidator creates a validator backed by a refreshing JWKS cache
func NewJWKSValidator(cfg JWKSConfig, logger Logger) (*JWKSValidator, error) {
	if cfg.URL == "" {
		return nil, errors.New("jwks url is required", errors.CategoryBadInput)
	}

	if logger == nil {
		logger = defLogger{}
	}

	interval := cfg.RefreshInterval
	if interval == 0 {
		interval = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.URL, keyfunc.Options{
		RefreshInterval:   interval,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh error: %v", err)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch JWK set")
	}

	return &JWKSValidator{
		jwks:     jwks,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger,
	}, nil
}

// Validate implements TokenValidator
func (v *JWKSValidator) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}
	if len(v.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(v.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, v.jwks.Keyfunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		clone := ErrTokenMalformed.Clone()
		clone.Source = err
		return nil, clone.WithMetadata(map[string]any{"cause": err.Error()})
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrTokenMalformed
}

// Close stops the background key refresh
func (v *JWKSValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
