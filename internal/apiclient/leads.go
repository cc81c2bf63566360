package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/spec-kit/leadcrm/internal/domain"
)

type usersEnvelope struct {
	Users []domain.User `json:"users"`
}

// ListLeads returns the leads visible to the caller.
func (c *Client) ListLeads(ctx context.Context, filters domain.LeadFilters) ([]domain.Lead, error) {
	query := url.Values{}
	if filters.LeadType != "" {
		query.Set("leadType", string(filters.LeadType))
	}
	if filters.Status != "" {
		query.Set("status", string(filters.Status))
	}
	if filters.Source != "" {
		query.Set("source", string(filters.Source))
	}
	if filters.AssignedAgent != "" {
		query.Set("assignedAgent", filters.AssignedAgent)
	}

	var out []domain.Lead
	if err := c.do(ctx, call{method: http.MethodGet, path: "/leads", query: query, out: &out, fallback: "Failed to fetch leads"}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Lead{}
	}
	return out, nil
}

// GetLead fetches one lead.
func (c *Client) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	var out domain.Lead
	if err := c.do(ctx, call{method: http.MethodGet, path: "/leads/" + url.PathEscape(id), out: &out, fallback: "Failed to fetch lead details"}); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateLead creates a lead and returns the stored record.
func (c *Client) CreateLead(ctx context.Context, lead domain.NewLead) (*domain.Lead, error) {
	var out domain.Lead
	if err := c.do(ctx, call{method: http.MethodPost, path: "/leads", body: lead, out: &out, fallback: "Failed to create lead"}); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLead applies a partial update.
func (c *Client) UpdateLead(ctx context.Context, id string, update domain.LeadUpdate) (*domain.Lead, error) {
	var out domain.Lead
	if err := c.do(ctx, call{method: http.MethodPut, path: "/leads/" + url.PathEscape(id), body: update, out: &out, fallback: "Failed to update lead"}); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLead removes a lead.
func (c *Client) DeleteLead(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/leads/" + url.PathEscape(id), fallback: "Failed to delete lead"})
}

// AddActivity logs an activity and returns the updated lead.
func (c *Client) AddActivity(ctx context.Context, leadID string, activity domain.NewActivity) (*domain.Lead, error) {
	var out domain.Lead
	path := "/leads/" + url.PathEscape(leadID) + "/activities"
	if err := c.do(ctx, call{method: http.MethodPost, path: path, body: activity, out: &out, fallback: "Failed to add activity"}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers lists accounts, optionally filtered by role. Admin only.
func (c *Client) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", string(role))
	}
	var out usersEnvelope
	if err := c.do(ctx, call{method: http.MethodGet, path: "/admin/users", query: query, out: &out, fallback: "Failed to load users"}); err != nil {
		return nil, err
	}
	if out.Users == nil {
		out.Users = []domain.User{}
	}
	return out.Users, nil
}
