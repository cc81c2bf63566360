package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/leadcrm/internal/domain"
)

var (
	adminUser = &domain.User{ID: "u-admin", Role: domain.RoleAdmin}
	agentUser = &domain.User{ID: "u-agent", Role: domain.RoleAgent}
)

func TestHasPermission_Table(t *testing.T) {
	tests := []struct {
		name     string
		user     *domain.User
		resource string
		action   string
		want     bool
	}{
		{"admin assigns leads", adminUser, ResourceLeads, ActionAssign, true},
		{"agent cannot assign leads", agentUser, ResourceLeads, ActionAssign, false},
		{"agent creates leads", agentUser, ResourceLeads, ActionCreate, true},
		{"agent cannot delete leads", agentUser, ResourceLeads, ActionDelete, false},
		{"agent has no users resource", agentUser, ResourceUsers, ActionRead, false},
		{"admin reads users", adminUser, ResourceUsers, ActionRead, true},
		{"admin exports reports", adminUser, ResourceReports, ActionExport, true},
		{"agent cannot export reports", agentUser, ResourceReports, ActionExport, false},
		{"agent cannot delete communications", agentUser, ResourceCommunications, ActionDelete, false},
		{"no wildcard resource", adminUser, "*", ActionRead, false},
		{"no prefix match", adminUser, "lead", ActionRead, false},
		{"case sensitive action", adminUser, ResourceLeads, "Read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.user, tt.resource, tt.action))
		})
	}
}

func TestHasPermission_NilUser(t *testing.T) {
	for _, resource := range []string{ResourceLeads, ResourceUsers, "anything"} {
		for _, action := range []string{ActionRead, ActionAssign, ""} {
			assert.False(t, HasPermission(nil, resource, action))
		}
	}
}

func TestHasPermission_UnknownRole(t *testing.T) {
	for _, role := range []domain.Role{"", "owner", "ADMIN", "moderator"} {
		user := &domain.User{ID: "u", Role: role}
		for _, perms := range rolePermissions {
			for _, p := range perms {
				for _, action := range p.Actions {
					assert.False(t, HasPermission(user, p.Resource, action), "role %q %s:%s", role, p.Resource, action)
				}
			}
		}
	}
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin(adminUser))
	assert.False(t, IsAdmin(agentUser))
	assert.False(t, IsAdmin(nil))
}

func TestPermissions_ReturnsCopy(t *testing.T) {
	perms := Permissions(domain.RoleAgent)
	perms[0].Actions[0] = ActionAssign
	perms[0].Actions = append(perms[0].Actions, ActionDelete)

	assert.False(t, HasPermission(agentUser, ResourceLeads, ActionAssign))
	assert.False(t, HasPermission(agentUser, ResourceLeads, ActionDelete))
	assert.Empty(t, Permissions("owner"))
}

func TestLeadGates(t *testing.T) {
	own := &domain.Lead{ID: "l1", AssignedAgent: agentUser.ID}
	other := &domain.Lead{ID: "l2", AssignedAgent: "someone-else"}

	assert.True(t, CanEditLead(agentUser, own))
	assert.False(t, CanEditLead(agentUser, other))
	assert.True(t, CanEditLead(adminUser, other))
	assert.False(t, CanEditLead(nil, own))
	assert.False(t, CanEditLead(adminUser, nil))

	assert.True(t, CanAssignLeads(adminUser))
	assert.False(t, CanAssignLeads(agentUser))

	assert.True(t, CanAddActivity(agentUser))
	assert.False(t, CanAddActivity(nil))
}
