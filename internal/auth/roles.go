package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leadcrm/internal/domain"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// Resources gated by the permission table.
const (
	ResourceLeads          = "leads"
	ResourceAgents         = "agents"
	ResourceAnalytics      = "analytics"
	ResourceReports        = "reports"
	ResourceSettings       = "settings"
	ResourceUsers          = "users"
	ResourceCalendar       = "calendar"
	ResourceCommunications = "communications"
)

// Actions a role may perform on a resource.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionAssign = "assign"
	ActionExport = "export"
)

// Permission lists the actions a role may take on one resource.
type Permission struct {
	Resource string   `json:"resource" yaml:"resource"`
	Actions  []string `json:"actions" yaml:"actions"`
}

// rolePermissions is fixed at build time and never mutated.
var rolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		{Resource: ResourceLeads, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAssign}},
		{Resource: ResourceAgents, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
		{Resource: ResourceAnalytics, Actions: []string{ActionRead, ActionExport}},
		{Resource: ResourceReports, Actions: []string{ActionRead, ActionExport, ActionCreate}},
		{Resource: ResourceSettings, Actions: []string{ActionRead, ActionUpdate}},
		{Resource: ResourceUsers, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
		{Resource: ResourceCalendar, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
		{Resource: ResourceCommunications, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
	},
	domain.RoleAgent: {
		// no assign
		{Resource: ResourceLeads, Actions: []string{ActionCreate, ActionRead, ActionUpdate}},
		{Resource: ResourceAnalytics, Actions: []string{ActionRead}},
		{Resource: ResourceReports, Actions: []string{ActionRead}},
		{Resource: ResourceCalendar, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
		{Resource: ResourceCommunications, Actions: []string{ActionCreate, ActionRead, ActionUpdate}},
	},
}

// HasPermission reports whether user's role allows action on resource.
// Resource and action match exactly; unknown roles and nil users get nothing.
func HasPermission(user *domain.User, resource, action string) bool {
	if user == nil {
		return false
	}
	return RoleHasPermission(user.Role, resource, action)
}

// RoleHasPermission evaluates the table for a bare role.
func RoleHasPermission(role domain.Role, resource, action string) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p.Resource == resource {
			return slices.Contains(p.Actions, action)
		}
	}
	return false
}

// IsAdmin reports whether user has the admin role.
func IsAdmin(user *domain.User) bool {
	return user != nil && user.Role == domain.RoleAdmin
}

// Permissions returns a copy of the entries for role.
func Permissions(role domain.Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	for i, p := range perms {
		out[i] = Permission{Resource: p.Resource, Actions: slices.Clone(p.Actions)}
	}
	return out
}

// CanEditLead requires leads:update and either admin or being the assigned agent.
func CanEditLead(user *domain.User, lead *domain.Lead) bool {
	if !HasPermission(user, ResourceLeads, ActionUpdate) || lead == nil {
		return false
	}
	return IsAdmin(user) || lead.AssignedAgent == user.ID
}

// CanAssignLeads requires leads:assign and the admin role.
func CanAssignLeads(user *domain.User) bool {
	return HasPermission(user, ResourceLeads, ActionAssign) && IsAdmin(user)
}

// CanAddActivity requires communications:create.
func CanAddActivity(user *domain.User) bool {
	return HasPermission(user, ResourceCommunications, ActionCreate)
}

// RequirePermission rejects principals whose role lacks action on resource.
func RequirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !HasPermission(principal.User, resource, action) {
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal is attached.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
