package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leadcrm/internal/api/dto"
	"github.com/spec-kit/leadcrm/internal/service"
)

// AuthHandler exposes the /auth endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	user, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{Token: token, User: user, Message: "Login successful"})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.UserResponse{User: user, Message: "User registered successfully"})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), principal.Claims); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Logged out"})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	fresh, err := h.auth.Me(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.UserResponse{User: fresh})
}

// UpdateProfile handles PUT /auth/profile and returns the bare user.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpdateRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	updated, err := h.auth.UpdateProfile(c.UserContext(), user.ID, req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Password changed successfully"})
}

// GoogleConnectURL handles GET /auth/google/connect-url.
func (h *AuthHandler) GoogleConnectURL(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	authURL, err := h.auth.GoogleConnectURL(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthURLResponse{AuthURL: authURL})
}

// GoogleCallback handles GET /auth/google/callback, the OAuth redirect target.
func (h *AuthHandler) GoogleCallback(c *fiber.Ctx) error {
	var query dto.GoogleCallbackQuery
	if err := bindQuery(c, &query); err != nil {
		return err
	}
	user, err := h.auth.CompleteGoogleConnect(c.UserContext(), query.State, query.Email, query.Name)
	if err != nil {
		return err
	}
	return c.JSON(dto.UserResponse{User: user, Message: "Google account connected"})
}

// GoogleDisconnect handles POST /auth/google/disconnect.
func (h *AuthHandler) GoogleDisconnect(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.auth.GoogleDisconnect(c.UserContext(), user.ID); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Google account disconnected"})
}
