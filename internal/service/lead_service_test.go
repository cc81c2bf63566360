package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/repository"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

func newLeadFixture(t *testing.T) (*LeadService, *domain.User, *domain.User) {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	admin := &repository.UserRecord{User: domain.User{ID: "admin", Email: "a@example.com", Role: domain.RoleAdmin, IsActive: true}}
	agent := &repository.UserRecord{User: domain.User{ID: "agent", Email: "b@example.com", Role: domain.RoleAgent, IsActive: true}}
	inactive := &repository.UserRecord{User: domain.User{ID: "gone", Email: "c@example.com", Role: domain.RoleAgent}}
	for _, rec := range []*repository.UserRecord{admin, agent, inactive} {
		require.NoError(t, users.Create(context.Background(), rec))
	}
	svc := NewLeadService(LeadDependencies{LeadRepo: repository.NewMemoryLeadRepository(), UserRepo: users})
	return svc, &admin.User, &agent.User
}

func TestLeadService_AssignChecksAgent(t *testing.T) {
	ctx := context.Background()
	svc, admin, _ := newLeadFixture(t)

	_, err := svc.Create(ctx, admin, domain.NewLead{Name: "x", AssignedAgent: "missing"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = svc.Create(ctx, admin, domain.NewLead{Name: "x", AssignedAgent: "gone"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	lead, err := svc.Create(ctx, admin, domain.NewLead{Name: "x", AssignedAgent: "agent"})
	require.NoError(t, err)
	assert.Equal(t, "agent", lead.AssignedAgent)
	assert.Equal(t, "admin", lead.CreatedBy)
}

func TestLeadService_AgentFilterCannotWiden(t *testing.T) {
	ctx := context.Background()
	svc, admin, agent := newLeadFixture(t)

	_, err := svc.Create(ctx, admin, domain.NewLead{Name: "mine", AssignedAgent: "agent"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, domain.NewLead{Name: "admin's"})
	require.NoError(t, err)

	leads, err := svc.List(ctx, agent, domain.LeadFilters{AssignedAgent: "admin"})
	require.NoError(t, err)
	assert.Empty(t, leads)

	leads, err = svc.List(ctx, agent, domain.LeadFilters{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "mine", leads[0].Name)
}

func TestLeadService_ActivityOnForeignLead(t *testing.T) {
	ctx := context.Background()
	svc, admin, agent := newLeadFixture(t)

	lead, err := svc.Create(ctx, admin, domain.NewLead{Name: "admin's"})
	require.NoError(t, err)

	_, err = svc.AddActivity(ctx, agent, lead.ID, domain.NewActivity{Type: domain.ActivityNote, Description: "hi"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = svc.AddActivity(ctx, admin, "nope", domain.NewActivity{Type: domain.ActivityNote, Description: "hi"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
