package api

import (
	"context"
	"net/http"

	"github.com/orchid-cli/orchid/internal/models"
)

// AuthResponse is the payload of a successful login, registration,
// social login, or token refresh.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         models.User `json:"user"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type userEnvelope struct {
	User models.User `json:"user"`
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a new account. The response is shaped exactly like a
// login: the caller is authenticated immediately.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLogin exchanges a Google ID token for a session.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*AuthResponse, error) {
	body := map[string]string{"token": idToken}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/google", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the session server-side. Callers treat failures as
// non-fatal; local credentials are cleared regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateProfile applies a partial profile update and returns the server's
// updated user record.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]any) (*models.User, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodPut, "/auth/update-profile", nil, fields, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token is sent as the bearer, overriding the token source.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.doBearer(ctx, http.MethodPost, "/auth/refresh", nil, nil, &out, refreshToken); err != nil {
		return nil, err
	}
	return &out, nil
}
