package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/pkg/models"
)

// Message types local to the TUI
type (
	// clearStatusMsg expires the status line set under id
	clearStatusMsg struct {
		id int
	}
)

// Result is what the TUI leaves for its caller once it exits
type Result struct {
	// Resume is set when the user asked to resume a session in the
	// foreground; Dir is the directory to run it in.
	Resume models.SessionRef
	Dir    string
}

// Options tune the TUI
type Options struct {
	// ScrollThreshold is how close to the bottom of the message pane the
	// next page is requested
	ScrollThreshold int
	// Foreground resumes after the TUI exits instead of opening a terminal
	Foreground bool
	// StatusTTL is how long status messages stay visible
	StatusTTL time.Duration
	// Attach receives the program's Send so background producers, like the
	// transcript watcher, can deliver messages
	Attach func(send func(tea.Msg))
	// OnSourceChange is called after the source is switched
	OnSourceChange func(models.Source)
}

const defaultStatusTTL = 4 * time.Second

// clearStatusCmd expires the status line after ttl
func clearStatusCmd(id int, ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

// isStoreMsg reports whether msg is a result the store must apply
func isStoreMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case orchestrator.ProjectsLoadedMsg,
		orchestrator.SessionsLoadedMsg,
		orchestrator.PageLoadedMsg,
		orchestrator.SearchResultMsg,
		orchestrator.StatsLoadedMsg,
		orchestrator.DebounceMsg,
		orchestrator.ChangedMsg:
		return true
	}
	return false
}
