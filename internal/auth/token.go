// Package auth issues and verifies the bearer tokens that identify an account.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer and Audience are stamped into every token.
	Issuer   = "prok-api"
	Audience = "prok-client"

	// DefaultTTL is the fixed token lifetime.
	DefaultTTL = 24 * time.Hour
)

// Verification failures.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
)

// Clock returns the current time.
type Clock func() time.Time

// TokenIssuer signs and verifies HS256 tokens whose subject is the account id.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    Clock
}

// Option configures a TokenIssuer.
type Option func(*TokenIssuer)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(t *TokenIssuer) { t.now = c }
}

// WithTTL overrides the token lifetime.
func WithTTL(d time.Duration) Option {
	return func(t *TokenIssuer) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// NewTokenIssuer builds an issuer for the given signing secret.
func NewTokenIssuer(secret string, opts ...Option) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	t := &TokenIssuer{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue creates a token for userID.
func (t *TokenIssuer) Issue(userID uint) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature, issuer, audience and expiry and returns the subject.
func (t *TokenIssuer) Verify(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return 0, ErrTokenSignature
		default:
			return 0, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid subject", ErrTokenMalformed)
	}
	return uint(id), nil
}
