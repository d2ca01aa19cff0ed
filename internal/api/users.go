package api

import (
	"context"
	"net/http"

	"github.com/sakif/clint-crypto/internal/model"
)

type updateProfileRequest struct {
	FullName string `json:"fullName"`
}

// GetProfile fetches the signed-in user's profile.
//
// HTTP: GET /users/me
func (c *Client) GetProfile(ctx context.Context) (*model.Identity, error) {
	var profile model.Identity
	if err := c.Request(ctx, http.MethodGet, "/users/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile saves a new display name and returns the server's view of
// the profile.
//
// HTTP: PUT /users/me
func (c *Client) UpdateProfile(ctx context.Context, fullName string) (*model.Identity, error) {
	var profile model.Identity
	if err := c.Request(ctx, http.MethodPut, "/users/me",
		updateProfileRequest{FullName: fullName}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
