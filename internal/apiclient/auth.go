package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/spec-kit/leadcrm/internal/domain"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type userEnvelope struct {
	User    *domain.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

type authURLEnvelope struct {
	AuthURL string `json:"authUrl"`
}

// Login exchanges credentials for a token and the user record.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/login", body: creds, out: &out, fallback: "Login failed"}); err != nil {
		return nil, err
	}
	if out.Token == "" || out.User == nil {
		return nil, &apperrors.DomainError{Code: apperrors.CodeAPI, Message: "Login failed", Err: errors.New("response missing token or user")}
	}
	out.User.Normalize()
	return &out, nil
}

// Register creates an account. No token is returned.
func (c *Client) Register(ctx context.Context, data domain.RegisterData) (*domain.User, error) {
	var out userEnvelope
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: data, out: &out, fallback: "Registration failed"}); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &apperrors.DomainError{Code: apperrors.CodeAPI, Message: "Registration failed", Err: errors.New("response missing user")}
	}
	out.User.Normalize()
	return out.User, nil
}

// Logout notifies the server that the current token is being discarded.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/logout", fallback: "Logout failed"})
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out userEnvelope
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me", out: &out, fallback: "Failed to load user"}); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &apperrors.DomainError{Code: apperrors.CodeAPI, Message: "Failed to load user", Err: errors.New("response missing user")}
	}
	out.User.Normalize()
	return out.User, nil
}

// UpdateProfile sends a partial update and returns the server's user.
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, call{method: http.MethodPut, path: "/auth/profile", body: update, out: &out, fallback: "Profile update failed"}); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &apperrors.DomainError{Code: apperrors.CodeAPI, Message: "Profile update failed", Err: errors.New("response missing user")}
	}
	out.Normalize()
	return &out, nil
}

// ChangePassword changes the caller's password.
func (c *Client) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/change-password", body: change, fallback: "Password change failed"})
}

// GoogleConnectURL asks the server for the Google authorization URL.
func (c *Client) GoogleConnectURL(ctx context.Context) (string, error) {
	var out authURLEnvelope
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/google/connect-url", out: &out, fallback: "Google connection failed"}); err != nil {
		return "", err
	}
	if out.AuthURL == "" {
		return "", &apperrors.DomainError{Code: apperrors.CodeAPI, Message: "No Google auth URL provided by server"}
	}
	return out.AuthURL, nil
}

// GoogleDisconnect unlinks the caller's Google account.
func (c *Client) GoogleDisconnect(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/google/disconnect", fallback: "Google disconnection failed"})
}
