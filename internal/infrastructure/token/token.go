// Package token issues and parses the signed session token handed to the
// browser. The token only names a server-side session; provider tokens
// never leave the server.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

const issuer = "codepilot-assistant"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Issuer signs session tokens with HS256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue returns a token naming s and its expiry.
func (i *Issuer) Issue(s *domain.Session) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: s.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tkn.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns the session id it names.
func (i *Issuer) Parse(raw string) (string, error) {
	var c claims
	tkn, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tkn.Valid || c.SessionID == "" {
		return "", ErrInvalidToken
	}
	return c.SessionID, nil
}
