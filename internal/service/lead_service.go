package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/events"
	"github.com/spec-kit/leadcrm/internal/repository"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// LeadService handles lead lifecycle operations for the sandbox API.
type LeadService struct {
	leads      repository.LeadRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// LeadDependencies encapsulates collaborators for the lead service.
type LeadDependencies struct {
	LeadRepo   repository.LeadRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewLeadService builds the service.
func NewLeadService(deps LeadDependencies) *LeadService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{
		leads:      deps.LeadRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns the leads actor may see. Agents are scoped to their own leads.
func (s *LeadService) List(ctx context.Context, actor *domain.User, filters domain.LeadFilters) ([]domain.Lead, error) {
	if !auth.IsAdmin(actor) {
		if filters.AssignedAgent != "" && filters.AssignedAgent != actor.ID {
			return []domain.Lead{}, nil
		}
		filters.AssignedAgent = actor.ID
	}
	leads, err := s.leads.List(ctx, filters)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return leads, nil
}

// Get returns one lead. Agents may only view leads assigned to them.
func (s *LeadService) Get(ctx context.Context, actor *domain.User, id string) (*domain.Lead, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.IsAdmin(actor) && lead.AssignedAgent != actor.ID {
		return nil, apperrors.NewForbidden("You can only view leads assigned to you")
	}
	return lead, nil
}

// Create stores a new lead. Only admins may assign a lead to someone else.
func (s *LeadService) Create(ctx context.Context, actor *domain.User, in domain.NewLead) (*domain.Lead, error) {
	if in.AssignedAgent == "" {
		in.AssignedAgent = actor.ID
	}
	if in.AssignedAgent != actor.ID {
		if !auth.CanAssignLeads(actor) {
			return nil, apperrors.NewForbidden("You cannot assign leads to other agents")
		}
		if err := s.checkAgent(ctx, in.AssignedAgent); err != nil {
			return nil, err
		}
	}
	if in.LeadType == "" {
		in.LeadType = domain.LeadTypeLead
	}

	now := s.now().UTC()
	lead := &domain.Lead{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		PrimaryPhone:       in.PrimaryPhone,
		SecondaryPhone:     in.SecondaryPhone,
		PrimaryEmail:       in.PrimaryEmail,
		SecondaryEmail:     in.SecondaryEmail,
		PropertyType:       in.PropertyType,
		BudgetRange:        in.BudgetRange,
		PreferredLocations: append([]string{}, in.PreferredLocations...),
		Source:             in.Source,
		Status:             in.Status,
		AssignedAgent:      in.AssignedAgent,
		Notes:              in.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
		LeadScore:          in.LeadScore,
		Activities:         make([]domain.Activity, 0, len(in.Activities)),
		Attachments:        append([]string{}, in.Attachments...),
		CreatedBy:          actor.ID,
		LeadType:           in.LeadType,
	}
	for _, activity := range in.Activities {
		if activity.ID == "" {
			activity.ID = uuid.NewString()
		}
		if activity.Date.IsZero() {
			activity.Date = now
		}
		if activity.Agent == "" {
			activity.Agent = actor.ID
		}
		lead.Activities = append(lead.Activities, activity)
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.New(events.EventLeadCreated, lead.ID, actor.ID, events.LeadCreatedPayload{
		Name:          lead.Name,
		Source:        lead.Source,
		AssignedAgent: lead.AssignedAgent,
		LeadType:      lead.LeadType,
	}))
	if lead.AssignedAgent != actor.ID {
		s.publish(ctx, events.New(events.EventLeadAssigned, lead.ID, actor.ID, events.LeadAssignedPayload{
			AssignedAgent: lead.AssignedAgent,
		}))
	}
	return lead, nil
}

// Update applies a partial update. A status change is also logged as an activity.
func (s *LeadService) Update(ctx context.Context, actor *domain.User, id string, update domain.LeadUpdate) (*domain.Lead, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditLead(actor, lead) {
		return nil, apperrors.NewForbidden("You can only edit leads assigned to you")
	}

	previousAgent := lead.AssignedAgent
	previousStatus := lead.Status
	reassigned := update.AssignedAgent != nil && *update.AssignedAgent != previousAgent
	if reassigned {
		if !auth.CanAssignLeads(actor) {
			return nil, apperrors.NewForbidden("You cannot reassign leads")
		}
		if err := s.checkAgent(ctx, *update.AssignedAgent); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	update.Apply(lead)
	lead.UpdatedAt = now
	statusChanged := lead.Status != previousStatus
	if statusChanged {
		lead.Activities = append(lead.Activities, domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityStatusChange,
			Description: fmt.Sprintf("Status changed from %s to %s", previousStatus, lead.Status),
			Date:        now,
			Agent:       actor.ID,
		})
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, s.mapRepoError(err)
	}

	if reassigned {
		s.publish(ctx, events.New(events.EventLeadAssigned, lead.ID, actor.ID, events.LeadAssignedPayload{
			PreviousAgent: previousAgent,
			AssignedAgent: lead.AssignedAgent,
		}))
	}
	if statusChanged {
		s.publish(ctx, events.New(events.EventLeadStatusChanged, lead.ID, actor.ID, events.LeadStatusChangedPayload{
			OldStatus: previousStatus,
			NewStatus: lead.Status,
		}))
	}
	return lead, nil
}

// Delete removes a lead.
func (s *LeadService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := s.leads.Delete(ctx, id); err != nil {
		return s.mapRepoError(err)
	}
	s.publish(ctx, events.New(events.EventLeadDeleted, id, actor.ID, nil))
	return nil
}

// AddActivity appends an activity to a lead the actor may edit.
func (s *LeadService) AddActivity(ctx context.Context, actor *domain.User, leadID string, in domain.NewActivity) (*domain.Lead, error) {
	lead, err := s.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !auth.IsAdmin(actor) && lead.AssignedAgent != actor.ID {
		return nil, apperrors.NewForbidden("You can only log activities on leads assigned to you")
	}

	now := s.now().UTC()
	activity := domain.Activity{
		ID:          uuid.NewString(),
		Type:        in.Type,
		Description: in.Description,
		Date:        now,
		Agent:       in.Agent,
		Metadata:    in.Metadata,
	}
	if in.Date != nil {
		activity.Date = in.Date.UTC()
	}
	if activity.Agent == "" {
		activity.Agent = actor.ID
	}

	lead.Activities = append(lead.Activities, activity)
	lead.UpdatedAt = now
	switch activity.Type {
	case domain.ActivityCall, domain.ActivityEmail, domain.ActivityMeeting:
		contacted := activity.Date
		lead.LastContacted = &contacted
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, s.mapRepoError(err)
	}

	s.publish(ctx, events.New(events.EventLeadActivityAdded, lead.ID, actor.ID, events.LeadActivityAddedPayload{
		ActivityID:   activity.ID,
		ActivityType: activity.Type,
		Preview:      preview(activity.Description, 80),
	}))
	return lead, nil
}

func (s *LeadService) load(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return lead, nil
}

func (s *LeadService) checkAgent(ctx context.Context, agentID string) error {
	rec, err := s.users.GetByID(ctx, agentID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewValidationError("Assigned agent does not exist", map[string]any{"assignedAgent": agentID})
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !rec.IsActive {
		return apperrors.NewValidationError("Assigned agent is inactive", map[string]any{"assignedAgent": agentID})
	}
	return nil
}

func (s *LeadService) mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("lead", nil)
	}
	return apperrors.NewInternalError(err)
}

func (s *LeadService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("lead_id", event.SubjectID),
			zap.Error(err))
	}
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
