package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenService creates a new TokenService instance. tokenExpiration is
// expressed in hours.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
	}
}

// Generate creates a signed session JWT for the given principal
func (ts *TokenServiceImpl) Generate(user *User) (string, error) {
	if user == nil {
		return "", errors.New("user must not be nil", errors.CategoryInternal)
	}

	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   user.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.Expiration())),
		},
		Email:    user.Email,
		Username: user.Username,
		Roles:    user.RoleNames(),
	}

	if user.OrganisationID != nil {
		claims.OrganisationID = user.OrganisationID.String()
	}

	if user.EstablishmentID != nil {
		claims.EstablishmentID = user.EstablishmentID.String()
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary session claims using the configured key.
func (ts *TokenServiceImpl) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// Expiration returns the configured token lifetime
func (ts *TokenServiceImpl) Expiration() time.Duration {
	return time.Duration(ts.tokenExpiration) * time.Hour
}
