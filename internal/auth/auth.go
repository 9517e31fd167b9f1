// Package auth holds the bearer token presented to the price server.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
)

// ErrNoToken is returned when neither a token nor a token file is given.
var ErrNoToken = errors.New("no token configured")

// Credentials holds a bearer token that may be replaced after login.
type Credentials struct {
	mu    sync.RWMutex
	token string
	user  string
}

// NewCredentials wraps a token. An empty token is allowed for anonymous use.
func NewCredentials(token string) *Credentials {
	return &Credentials{token: strings.TrimSpace(token)}
}

// LoadCredentials builds credentials from an inline token or, if that is
// empty, from a token file.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	if token = strings.TrimSpace(token); token != "" {
		return NewCredentials(token), nil
	}
	if tokenPath == "" {
		return nil, ErrNoToken
	}

	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	return NewCredentials(tok), nil
}

// LoadToken reads a token from a file, ignoring surrounding whitespace.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return tok, nil
}

// Token returns the current token.
func (c *Credentials) Token() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User returns the user name recorded at login, if any.
func (c *Credentials) User() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// SetToken replaces the token, e.g. after a login.
func (c *Credentials) SetToken(token, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
	c.user = user
}

// Authenticated reports whether a token is present.
func (c *Credentials) Authenticated() bool {
	return c.Token() != ""
}

// Apply sets the Authorization header when a token is present.
func (c *Credentials) Apply(h http.Header) {
	if tok := c.Token(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
}

// Headers returns the authentication headers as a map.
func (c *Credentials) Headers() map[string]string {
	tok := c.Token()
	if tok == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}
