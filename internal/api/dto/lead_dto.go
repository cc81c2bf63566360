package dto

import (
	"github.com/spec-kit/leadcrm/internal/domain"
)

// LeadListQuery filters GET /leads.
type LeadListQuery struct {
	Status        string `query:"status"`
	Source        string `query:"source"`
	LeadType      string `query:"leadType" validate:"omitempty,oneof=Lead Cold-Lead"`
	AssignedAgent string `query:"assignedAgent"`
}

// ToDomain converts the query.
func (q LeadListQuery) ToDomain() domain.LeadFilters {
	return domain.LeadFilters{
		Status:        domain.LeadStatus(q.Status),
		Source:        domain.LeadSource(q.Source),
		LeadType:      domain.LeadType(q.LeadType),
		AssignedAgent: q.AssignedAgent,
	}
}

// UpdateLeadRequest payload for PUT /leads/:id. Absent fields are left unchanged.
type UpdateLeadRequest struct {
	Name               *string              `json:"name,omitempty" validate:"omitempty,min=1"`
	PrimaryPhone       *string              `json:"primaryPhone,omitempty" validate:"omitempty,min=1"`
	SecondaryPhone     *string              `json:"secondaryPhone,omitempty"`
	PrimaryEmail       *string              `json:"primaryEmail,omitempty" validate:"omitempty,email"`
	SecondaryEmail     *string              `json:"secondaryEmail,omitempty" validate:"omitempty,email"`
	PropertyType       *domain.PropertyType `json:"propertyType,omitempty" validate:"omitempty,oneof=Residential Commercial Land"`
	BudgetRange        *string              `json:"budgetRange,omitempty"`
	PreferredLocations []string             `json:"preferredLocations,omitempty"`
	Source             *domain.LeadSource   `json:"source,omitempty"`
	Status             *domain.LeadStatus   `json:"status,omitempty"`
	AssignedAgent      *string              `json:"assignedAgent,omitempty"`
	Notes              *string              `json:"notes,omitempty"`
	LeadScore          *domain.LeadScore    `json:"leadScore,omitempty" validate:"omitempty,oneof=High Medium Low"`
	LeadType           *domain.LeadType     `json:"leadType,omitempty" validate:"omitempty,oneof=Lead Cold-Lead"`
}

// ToDomain converts the request.
func (r UpdateLeadRequest) ToDomain() domain.LeadUpdate {
	return domain.LeadUpdate{
		Name:               r.Name,
		PrimaryPhone:       r.PrimaryPhone,
		SecondaryPhone:     r.SecondaryPhone,
		PrimaryEmail:       r.PrimaryEmail,
		SecondaryEmail:     r.SecondaryEmail,
		PropertyType:       r.PropertyType,
		BudgetRange:        r.BudgetRange,
		PreferredLocations: r.PreferredLocations,
		Source:             r.Source,
		Status:             r.Status,
		AssignedAgent:      r.AssignedAgent,
		Notes:              r.Notes,
		LeadScore:          r.LeadScore,
		LeadType:           r.LeadType,
	}
}
