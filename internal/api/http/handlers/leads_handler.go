package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/leadcrm/internal/api/dto"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/service"
	"github.com/spec-kit/leadcrm/internal/validation"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// LeadsHandler exposes the /leads endpoints.
type LeadsHandler struct {
	leads *service.LeadService
}

// NewLeadsHandler constructs handler.
func NewLeadsHandler(leadService *service.LeadService) *LeadsHandler {
	return &LeadsHandler{leads: leadService}
}

// List handles GET /leads.
func (h *LeadsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var query dto.LeadListQuery
	if err := bindQuery(c, &query); err != nil {
		return err
	}

	leads, err := h.leads.List(c.UserContext(), user, query.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(leads)
}

// Get handles GET /leads/:id.
func (h *LeadsHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	lead, err := h.leads.Get(c.UserContext(), user, leadID(c))
	if err != nil {
		return err
	}
	return c.JSON(lead)
}

// Create handles POST /leads.
func (h *LeadsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req domain.NewLead
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.LeadType == "" {
		req.LeadType = domain.LeadTypeLead
	}
	if err := validation.Struct(req); err != nil {
		return err
	}

	lead, err := h.leads.Create(c.UserContext(), user, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(lead)
}

// Update handles PUT /leads/:id.
func (h *LeadsHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateLeadRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	lead, err := h.leads.Update(c.UserContext(), user, leadID(c), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(lead)
}

// Delete handles DELETE /leads/:id.
func (h *LeadsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.leads.Delete(c.UserContext(), user, leadID(c)); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Lead deleted"})
}

// AddActivity handles POST /leads/:id/activities.
func (h *LeadsHandler) AddActivity(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req domain.NewActivity
	if err := bindBody(c, &req); err != nil {
		return err
	}

	lead, err := h.leads.AddActivity(c.UserContext(), user, leadID(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(lead)
}

// leadID copies the route parameter out of fiber's reusable buffer.
func leadID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}
