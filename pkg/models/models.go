package models

import (
	"fmt"
	"strings"
	"time"
)

// Source selects which assistant's session store is being browsed
type Source string

const (
	SourceClaude Source = "claude"
	SourceCodex  Source = "codex"
)

// Sources lists every supported source in display order
var Sources = []Source{SourceClaude, SourceCodex}

// ParseSource converts a user supplied name into a Source
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceClaude, SourceCodex:
		return src, nil
	default:
		return "", fmt.Errorf("unknown source %q (expected claude or codex)", s)
	}
}

// Next returns the source after s, wrapping around
func (s Source) Next() Source {
	for i, src := range Sources {
		if src == s {
			return Sources[(i+1)%len(Sources)]
		}
	}
	return Sources[0]
}

// Title returns the display name of the source
func (s Source) Title() string {
	switch s {
	case SourceClaude:
		return "Claude"
	case SourceCodex:
		return "Codex"
	}
	return string(s)
}

// Project represents a directory that owns one or more sessions
type Project struct {
	ID           string // encoded directory name, opaque outside the provider
	DisplayPath  string
	ShortName    string
	SessionCount int
	LastModified time.Time
}

// Session represents a single transcript inside a project
type Session struct {
	SessionID    string
	FilePath     string
	FirstPrompt  string
	MessageCount int
	Created      time.Time
	Modified     time.Time
	GitBranch    string
	ProjectPath  string
	Cwd          string
}

// SessionRef identifies a session for every provider operation
type SessionRef struct {
	ProjectID string
	SessionID string
}

func (r SessionRef) String() string {
	return r.ProjectID + "/" + r.SessionID
}

// IsZero reports whether the ref names no session
func (r SessionRef) IsZero() bool {
	return r.ProjectID == "" && r.SessionID == ""
}

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockKind tags the variant held by a ContentBlock
type BlockKind string

const (
	BlockText               BlockKind = "text"
	BlockThinking           BlockKind = "thinking"
	BlockToolUse            BlockKind = "tool_use"
	BlockToolResult         BlockKind = "tool_result"
	BlockFunctionCallOutput BlockKind = "function_call_output"
)

// ContentBlock is one part of a message. Which fields are set depends on Kind:
// Text carries the text, thinking, or tool output; ToolID/ToolName/Input
// describe tool calls and the call a result belongs to.
type ContentBlock struct {
	Kind     BlockKind
	Text     string
	ToolID   string
	ToolName string
	Input    string
	IsError  bool
}

// Message is a display-ready transcript entry
type Message struct {
	UUID      string
	Role      Role
	Timestamp time.Time
	Content   []ContentBlock
}

// PlainText joins the searchable text of all blocks
func (m Message) PlainText() string {
	parts := make([]string, 0, len(m.Content))
	for _, block := range m.Content {
		switch block.Kind {
		case BlockToolUse:
			parts = append(parts, block.ToolName+" "+block.Input)
		default:
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// MessagePage is one page of a session's messages
type MessagePage struct {
	Messages []Message
	Total    int
	Page     int
	PageSize int
	HasMore  bool
}

// SearchResult is a single full-text hit
type SearchResult struct {
	ProjectID   string
	ProjectName string
	SessionID   string
	FirstPrompt string
	MatchedText string
	Role        Role
	Timestamp   time.Time
}

// Ref returns the session the hit belongs to
func (r SearchResult) Ref() SessionRef {
	return SessionRef{ProjectID: r.ProjectID, SessionID: r.SessionID}
}

// DailyTokens is the token total for one calendar day (YYYY-MM-DD)
type DailyTokens struct {
	Date   string
	Tokens int64
}

// TokenUsageSummary aggregates token usage for a source
type TokenUsageSummary struct {
	TotalTokens   int64
	InputTokens   int64
	OutputTokens  int64
	TokensByModel map[string]int64
	DailyTokens   []DailyTokens
	SessionCount  int
	MessageCount  int
}
