// Package auth issues and verifies the bearer tokens that carry an actor's
// identity (user ID, role) through both the HTTP and WebSocket transports.
//
// Tokens are HS256 JWTs with a jti claim so individual tokens can be revoked
// at logout. Verification is deliberately strict: unknown signing methods,
// expired tokens, and malformed claims all fail closed.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification errors.
var (
	// ErrInvalidToken covers malformed, mis-signed, or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the JWT payload minted at login.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager mints and parses access tokens with a shared HMAC secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager returns a Manager signing with secret and issuing tokens valid
// for ttl (defaults to 8h when non-positive, matching portal sessions).
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Mint creates a signed token for the given user and role. The subject is
// the user ID; the jti is a fresh UUID used for revocation.
func (m *Manager) Mint(userID, role string) (token, jti string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	jti = uuid.NewString()
	expiresAt = now.Add(m.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	return token, jti, expiresAt, err
}

// Parse verifies a compact token string and returns its claims.
// Any verification failure is reported as ErrInvalidToken.
func (m *Manager) Parse(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
