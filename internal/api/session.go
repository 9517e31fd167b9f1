package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Login exchanges email and password for a token and stores it in the
// client's credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/login", LoginRequest{Email: email, Password: password})
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/register", RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   path,
		body:   body,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if resp.Token == "" {
		return nil, errors.New("authenticate: response has no token")
	}

	c.creds.SetToken(resp.Token, resp.User.Username)
	c.logger.Info("authenticated", "user", resp.User.Username)
	return &resp, nil
}
