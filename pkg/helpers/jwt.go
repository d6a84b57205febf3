package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for every token that fails verification,
// whatever the reason, so callers cannot probe validation internals.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of a session token. Subject carries the email.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Email returns the subject email.
func (c *Claims) Email() string { return c.Subject }

// TokenCodec signs and verifies stateless HS256 session tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and expiry checks.
func (m *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	m.now = now
	return m
}

// TTL is the configured default lifetime.
func (m *TokenCodec) TTL() time.Duration { return m.ttl }

// Issue signs a token for the identity that expires at now+ttl.
func (m *TokenCodec) Issue(email string, identityID int64, ttl time.Duration) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID: identityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", nil, err
	}
	return s, claims, nil
}

// Verify returns the claims only when signature, algorithm, expiry and
// required claims all check out.
func (m *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
