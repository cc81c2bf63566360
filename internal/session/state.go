package session

import "github.com/spec-kit/leadcrm/internal/domain"

// Phase is where the session sits in its lifecycle.
type Phase string

const (
	PhaseUnknown         Phase = "unknown"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// State is a snapshot of the session. Snapshots are copies; mutating one
// has no effect on the Manager.
type State struct {
	User            *domain.User `json:"user" yaml:"user"`
	IsAuthenticated bool         `json:"isAuthenticated" yaml:"isAuthenticated"`
	IsLoading       bool         `json:"isLoading" yaml:"isLoading"`
	LastError       string       `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	Phase           Phase        `json:"phase" yaml:"phase"`
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

func initialState() State {
	return State{Phase: PhaseUnknown, IsLoading: true}
}
