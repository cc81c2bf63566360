package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/leadcrm/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

// Session lifecycle events, published by the session manager.
const (
	EventSessionInitialized EventType = "session_initialized"
	EventLoggedIn           EventType = "logged_in"
	EventLoggedOut          EventType = "logged_out"
	EventSessionInvalidated EventType = "session_invalidated"
	EventProfileUpdated     EventType = "profile_updated"
	EventUserRefreshed      EventType = "user_refreshed"
)

// Lead events, published by the sandbox lead service.
const (
	EventLeadCreated       EventType = "lead_created"
	EventLeadAssigned      EventType = "lead_assigned"
	EventLeadStatusChanged EventType = "lead_status_changed"
	EventLeadActivityAdded EventType = "lead_activity_added"
	EventLeadDeleted       EventType = "lead_deleted"
)

// Event represents a domain event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, subjectID, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionPayload describes the user a session event concerns.
type SessionPayload struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// LeadCreatedPayload payload.
type LeadCreatedPayload struct {
	Name          string            `json:"name"`
	Source        domain.LeadSource `json:"source"`
	AssignedAgent string            `json:"assigned_agent,omitempty"`
	LeadType      domain.LeadType   `json:"lead_type"`
}

// LeadAssignedPayload payload.
type LeadAssignedPayload struct {
	PreviousAgent string `json:"previous_agent,omitempty"`
	AssignedAgent string `json:"assigned_agent"`
}

// LeadStatusChangedPayload payload.
type LeadStatusChangedPayload struct {
	OldStatus domain.LeadStatus `json:"old_status"`
	NewStatus domain.LeadStatus `json:"new_status"`
}

// LeadActivityAddedPayload payload.
type LeadActivityAddedPayload struct {
	ActivityID   string              `json:"activity_id"`
	ActivityType domain.ActivityType `json:"activity_type"`
	Preview      string              `json:"preview"`
}
