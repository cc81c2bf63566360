package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leadcrm/internal/api/dto"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/service"
)

// AdminHandler exposes the /admin endpoints.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// ListUsers handles GET /admin/users?role=.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.UserContext(), domain.Role(c.Query("role")))
	if err != nil {
		return err
	}
	return c.JSON(dto.UsersResponse{Users: users})
}
