package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "wownote"

// SessionSigner issues and verifies the signed session cookie value. The
// token only names a session row; revocation is checked against the store.
type SessionSigner struct {
	key []byte
}

// NewSessionSigner returns a signer using HMAC-SHA256 with key.
func NewSessionSigner(key string) (*SessionSigner, error) {
	if len(key) < 16 {
		return nil, errors.New("session signing key must be at least 16 characters")
	}
	return &SessionSigner{key: []byte(key)}, nil
}

// Issue signs a token for sessionID that expires at expiresAt.
func (s *SessionSigner) Issue(sessionID uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionID.String(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse validates a token and returns the session id it names.
func (s *SessionSigner) Parse(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse session token: %w", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse session subject: %w", err)
	}
	return id, nil
}
