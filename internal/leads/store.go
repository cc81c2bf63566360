// Package leads is the client-side lead store. Every mutating call is gated
// by the role permission table against the current session user before any
// request is sent; the server still enforces its own rules.
package leads

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/validation"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// API is the lead and admin surface of the remote API.
type API interface {
	ListLeads(ctx context.Context, filters domain.LeadFilters) ([]domain.Lead, error)
	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	CreateLead(ctx context.Context, lead domain.NewLead) (*domain.Lead, error)
	UpdateLead(ctx context.Context, id string, update domain.LeadUpdate) (*domain.Lead, error)
	DeleteLead(ctx context.Context, id string) error
	AddActivity(ctx context.Context, leadID string, activity domain.NewActivity) (*domain.Lead, error)
	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// UserSource yields the current session user, or nil.
type UserSource interface {
	CurrentUser() *domain.User
}

// Store caches the leads visible to the current user.
type Store struct {
	api    API
	users  UserSource
	logger *zap.Logger

	mu       sync.RWMutex
	leads    []domain.Lead
	inflight int
	lastErr  string
}

// NewStore builds a store.
func NewStore(api API, users UserSource, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{api: api, users: users, logger: logger, leads: []domain.Lead{}}
}

// Leads returns a copy of the cached leads.
func (s *Store) Leads() []domain.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Lead, len(s.leads))
	for i := range s.leads {
		out[i] = *s.leads[i].Clone()
	}
	return out
}

// Loading reports whether a request is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Error returns the message of the last failed call.
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Fetch reloads the cache. Agents only keep the leads assigned to them.
func (s *Store) Fetch(ctx context.Context, filters domain.LeadFilters) ([]domain.Lead, error) {
	user, err := s.require(auth.ResourceLeads, auth.ActionRead)
	if err != nil {
		return nil, s.fail(err)
	}

	s.begin()
	defer s.end()

	leads, err := s.api.ListLeads(ctx, filters)
	if err != nil {
		return nil, s.fail(err)
	}
	if !auth.IsAdmin(user) {
		own := leads[:0]
		for _, lead := range leads {
			if lead.AssignedAgent == user.ID {
				own = append(own, lead)
			}
		}
		leads = own
	}

	s.mu.Lock()
	s.leads = leads
	s.lastErr = ""
	s.mu.Unlock()
	return s.Leads(), nil
}

// Get fetches one lead. Agents may only view leads assigned to them.
func (s *Store) Get(ctx context.Context, id string) (*domain.Lead, error) {
	user, err := s.require(auth.ResourceLeads, auth.ActionRead)
	if err != nil {
		return nil, s.fail(err)
	}

	s.begin()
	defer s.end()

	lead, err := s.api.GetLead(ctx, id)
	if err != nil {
		return nil, s.fail(err)
	}
	if !auth.IsAdmin(user) && lead.AssignedAgent != user.ID {
		return nil, s.fail(apperrors.NewPermissionDenied(auth.ResourceLeads, auth.ActionRead))
	}
	s.replace(lead)
	return lead.Clone(), nil
}

// Create adds a lead, assigning it to the current user when no agent is set.
// Assigning it to someone else needs the assign permission.
func (s *Store) Create(ctx context.Context, lead domain.NewLead) (*domain.Lead, error) {
	user, err := s.require(auth.ResourceLeads, auth.ActionCreate)
	if err != nil {
		return nil, s.fail(err)
	}
	if lead.AssignedAgent == "" {
		lead.AssignedAgent = user.ID
	}
	if lead.AssignedAgent != user.ID && !auth.CanAssignLeads(user) {
		return nil, s.fail(apperrors.NewPermissionDenied(auth.ResourceLeads, auth.ActionAssign))
	}
	if lead.LeadType == "" {
		lead.LeadType = domain.LeadTypeLead
	}
	if err := validation.Struct(lead); err != nil {
		return nil, s.fail(err)
	}

	s.begin()
	defer s.end()

	created, err := s.api.CreateLead(ctx, lead)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.leads = append(s.leads, *created.Clone())
	s.lastErr = ""
	s.mu.Unlock()
	return created, nil
}

// Update applies a partial update. The user must be able to edit the lead,
// and changing its agent additionally needs the assign permission.
func (s *Store) Update(ctx context.Context, id string, update domain.LeadUpdate) (*domain.Lead, error) {
	user, err := s.require(auth.ResourceLeads, auth.ActionUpdate)
	if err != nil {
		return nil, s.fail(err)
	}

	current, err := s.lookup(ctx, id)
	if err != nil {
		return nil, s.fail(err)
	}
	if !auth.CanEditLead(user, current) {
		return nil, s.fail(apperrors.NewPermissionDenied(auth.ResourceLeads, auth.ActionUpdate))
	}
	if update.AssignedAgent != nil && *update.AssignedAgent != current.AssignedAgent && !auth.CanAssignLeads(user) {
		return nil, s.fail(apperrors.NewPermissionDenied(auth.ResourceLeads, auth.ActionAssign))
	}

	s.begin()
	defer s.end()

	updated, err := s.api.UpdateLead(ctx, id, update)
	if err != nil {
		return nil, s.fail(err)
	}
	s.replace(updated)
	return updated, nil
}

// Delete removes a lead.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.require(auth.ResourceLeads, auth.ActionDelete); err != nil {
		return s.fail(err)
	}

	s.begin()
	defer s.end()

	if err := s.api.DeleteLead(ctx, id); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	kept := s.leads[:0]
	for _, lead := range s.leads {
		if lead.ID != id {
			kept = append(kept, lead)
		}
	}
	s.leads = kept
	s.lastErr = ""
	s.mu.Unlock()
	return nil
}

// AddActivity logs an activity against a lead, defaulting the agent to the
// current user.
func (s *Store) AddActivity(ctx context.Context, leadID string, activity domain.NewActivity) (*domain.Lead, error) {
	user, err := s.require(auth.ResourceCommunications, auth.ActionCreate)
	if err != nil {
		return nil, s.fail(err)
	}
	if activity.Agent == "" {
		activity.Agent = user.ID
	}
	if err := validation.Struct(activity); err != nil {
		return nil, s.fail(err)
	}

	s.begin()
	defer s.end()

	updated, err := s.api.AddActivity(ctx, leadID, activity)
	if err != nil {
		return nil, s.fail(err)
	}
	s.replace(updated)
	return updated, nil
}

// Agents lists agent accounts for assignment. Users who cannot read users
// get an empty list rather than an error.
func (s *Store) Agents(ctx context.Context) ([]domain.User, error) {
	user := s.users.CurrentUser()
	if !auth.IsAdmin(user) || !auth.HasPermission(user, auth.ResourceUsers, auth.ActionRead) {
		return []domain.User{}, nil
	}

	s.begin()
	defer s.end()

	agents, err := s.api.ListUsers(ctx, domain.RoleAgent)
	if err != nil {
		s.logger.Warn("load agents failed", zap.Error(err))
		return nil, err
	}
	return agents, nil
}

func (s *Store) require(resource, action string) (*domain.User, error) {
	user := s.users.CurrentUser()
	if user == nil {
		return nil, apperrors.NewUnauthorized("please log in first")
	}
	if !auth.HasPermission(user, resource, action) {
		return nil, apperrors.NewPermissionDenied(resource, action)
	}
	return user, nil
}

func (s *Store) lookup(ctx context.Context, id string) (*domain.Lead, error) {
	s.mu.RLock()
	for i := range s.leads {
		if s.leads[i].ID == id {
			lead := s.leads[i].Clone()
			s.mu.RUnlock()
			return lead, nil
		}
	}
	s.mu.RUnlock()

	s.begin()
	defer s.end()
	return s.api.GetLead(ctx, id)
}

// replace swaps in the server's copy of a lead wholesale.
func (s *Store) replace(lead *domain.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
	for i := range s.leads {
		if s.leads[i].ID == lead.ID {
			s.leads[i] = *lead.Clone()
			return
		}
	}
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = apperrors.Message(err)
	s.mu.Unlock()
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) && !errors.Is(err, context.Canceled) {
		s.logger.Debug("lead operation failed", zap.Error(err))
	}
	return err
}

func (s *Store) begin() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}
