package api

import (
	"context"
	"errors"
	"strings"

	"github.com/user/sawlah/internal/model"
)

// ErrMissingCredentials is returned before contacting the backend when the
// username or password is empty.
var ErrMissingCredentials = errors.New("username and password are required")

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*model.AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/login", username, password)
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, username, password string) (*model.AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/register", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (*model.AuthResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, &APIError{Kind: KindAuth, Message: ErrMissingCredentials.Error(), Err: ErrMissingCredentials}
	}

	var res model.AuthResult
	err := c.post(ctx, path, credentials{Username: username, Password: password}, &res)
	if err != nil {
		// Every backend rejection of credentials is an auth failure.
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.Kind = KindAuth
		}
		return nil, err
	}
	if res.Token == "" {
		return nil, &APIError{Kind: KindAuth, Message: "backend returned no token"}
	}
	if res.Username == "" {
		res.Username = username
	}
	return &res, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.get(ctx, "/api/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}
