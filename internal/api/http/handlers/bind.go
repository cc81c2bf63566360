package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/validation"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return validation.Struct(out)
}

func bindQuery(c *fiber.Ctx, out any) error {
	if err := c.QueryParser(out); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	return validation.Struct(out)
}

func currentPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, err := currentPrincipal(c)
	if err != nil {
		return nil, err
	}
	return principal.User, nil
}
