package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/model"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an account. On success the returned token is persisted
// before the payload is handed back, so the very next request is authenticated.
//
// HTTP: POST /auth/signup
func (c *Client) Signup(ctx context.Context, email, password, fullName string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.Request(ctx, http.MethodPost, "/auth/signup",
		signupRequest{Email: email, Password: password, FullName: fullName}, &resp); err != nil {
		return nil, err
	}
	if err := c.persist(ctx, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a bearer token and persists it.
//
// HTTP: POST /auth/login
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.Request(ctx, http.MethodPost, "/auth/login",
		loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if err := c.persist(ctx, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout forgets the local credential. There is no server-side revocation
// call: the token simply stops being sent.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("api: clearing credential: %w", err)
	}
	return nil
}

func (c *Client) persist(ctx context.Context, resp *model.AuthResponse) error {
	if resp.Token == "" {
		return apperror.ProtocolFailure(http.StatusOK, errors.New("auth response has no token"))
	}
	if err := c.store.Set(ctx, resp.Token); err != nil {
		return fmt.Errorf("api: persisting credential: %w", err)
	}
	return nil
}
