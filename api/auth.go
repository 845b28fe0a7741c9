package api

import (
	"context"
	"net/http"

	"vulnlib/library"
)

// AuthClient wraps /auth. The backend tracks the session with a cookie, so
// Login only sticks when the Client has a cookie jar.
type AuthClient struct {
	c *Client
}

// Login posts the credentials. A wrong username or password comes back as a
// *RequestError with status 401.
func (a *AuthClient) Login(ctx context.Context, creds library.Credentials) (*library.Result, error) {
	var res library.Result
	if err := a.c.Do(ctx, "/auth/login", &Request{Method: http.MethodPost, Body: creds}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates a member account.
func (a *AuthClient) Register(ctx context.Context, user library.UserInput) (*library.Result, error) {
	var res library.Result
	if err := a.c.Do(ctx, "/auth/register", &Request{Method: http.MethodPost, Body: user}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout ends the current session.
func (a *AuthClient) Logout(ctx context.Context) (*library.Result, error) {
	var res library.Result
	if err := a.c.Do(ctx, "/auth/logout", &Request{Method: http.MethodPost}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
