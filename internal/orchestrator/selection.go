package orchestrator

import (
	"github.com/strrl/claude-history/pkg/models"
)

// SelectionKind is the state of the navigation state machine
type SelectionKind int

const (
	SelectionNone SelectionKind = iota
	SelectionProject
	SelectionSession
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionProject:
		return "project"
	case SelectionSession:
		return "session"
	default:
		return "none"
	}
}

// Selection is the current navigation position
type Selection struct {
	Kind      SelectionKind
	ProjectID string
	SessionID string
}

// Ref returns the selected session, or the zero ref if none is selected
func (s Selection) Ref() models.SessionRef {
	if s.Kind != SelectionSession {
		return models.SessionRef{}
	}
	return models.SessionRef{ProjectID: s.ProjectID, SessionID: s.SessionID}
}

// HasProject reports whether a project is selected
func (s Selection) HasProject() bool {
	return s.Kind != SelectionNone
}
