package orchestrator

import (
	"github.com/strrl/claude-history/pkg/models"
)

// Message types delivered back to Store.Update when a provider call resolves.
// Every result carries the generation it was dispatched under.
type (
	// ProjectsLoadedMsg contains loaded projects
	ProjectsLoadedMsg struct {
		Gen       uint64
		RequestID string
		Source    models.Source
		Projects  []models.Project
		Err       error
	}

	// SessionsLoadedMsg contains loaded sessions for one project
	SessionsLoadedMsg struct {
		Gen       uint64
		RequestID string
		ProjectID string
		Sessions  []models.Session
		Err       error
	}

	// PageLoadedMsg contains one page of messages
	PageLoadedMsg struct {
		Gen       uint64
		RequestID string
		Ref       models.SessionRef
		Page      int
		Result    models.MessagePage
		Err       error
	}

	// SearchResultMsg contains the results for one dispatched query
	SearchResultMsg struct {
		Gen       uint64
		RequestID string
		Query     string
		Results   []models.SearchResult
		Err       error
	}

	// StatsLoadedMsg contains the usage summary for a source
	StatsLoadedMsg struct {
		Gen       uint64
		RequestID string
		Source    models.Source
		Summary   models.TokenUsageSummary
		Err       error
	}

	// ResumeResultMsg reports the outcome of a resume request
	ResumeResultMsg struct {
		Ref models.SessionRef
		Err error
	}

	// DeleteResultMsg reports the outcome of a delete request
	DeleteResultMsg struct {
		Source models.Source
		Ref    models.SessionRef
		Err    error
	}

	// ChangedMsg tells the store that transcripts changed on disk
	ChangedMsg struct {
		Paths []string
	}
)
