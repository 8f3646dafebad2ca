package bookingapi

import (
	"context"
	"encoding/json"
	"net/http"

	"ev-booking-gateway/internal/model"
)

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, in model.LoginRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.do(ctx, http.MethodPost, []string{"api", "auth", "login"}, nil, nil, in, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, in model.RegisterRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.do(ctx, http.MethodPost, []string{"api", "auth", "register"}, nil, nil, in, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile returns the signed-in user's profile as the backend shapes it.
func (c *Client) Profile(ctx context.Context, sess Session) (json.RawMessage, error) {
	var profile json.RawMessage
	if err := c.do(ctx, http.MethodGet, []string{"api", "auth", "profile"}, nil, &sess, nil, nil, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}
