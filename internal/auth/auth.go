// Package auth provides bearer-token credentials for the tracker API and push channel.
//
// Tokens are usually JWTs issued by the dashboard backend. The client never
// verifies them (the server does); it only reads the exp claim so an expired
// token is reported before a request is wasted on it. Opaque tokens are
// accepted and treated as non-expiring.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when the configured token is past its exp claim.
var ErrTokenExpired = errors.New("auth token expired")

// Credentials holds the bearer token attached to outgoing requests.
type Credentials struct {
	Token     string
	Subject   string    // JWT sub claim, empty for opaque tokens
	ExpiresAt time.Time // Zero when the token carries no exp claim
}

// LoadCredentials resolves the token from the literal value or, when that is
// empty, from the file at tokenPath. Both empty means anonymous access and
// returns nil credentials.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	if token == "" && tokenPath != "" {
		data, err := os.ReadFile(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return nil, nil
	}
	return NewCredentials(token)
}

// NewCredentials builds credentials from a raw token.
func NewCredentials(token string) (*Credentials, error) {
	creds := &Credentials{Token: token}

	// Three dot-separated segments means JWT; anything else is opaque.
	if strings.Count(token, ".") != 2 {
		return creds, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("parse token exp: %w", err)
	}
	if exp != nil {
		creds.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		creds.Subject = sub
	}

	return creds, nil
}

// Expired reports whether the token is past its exp claim at now.
func (c *Credentials) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Headers returns the authentication headers for a request.
// Nil credentials produce no headers.
func (c *Credentials) Headers() (map[string]string, error) {
	if c == nil || c.Token == "" {
		return nil, nil
	}
	if c.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}
	return map[string]string{
		"Authorization": "Bearer " + c.Token,
	}, nil
}
