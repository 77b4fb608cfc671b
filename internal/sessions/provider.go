// Package sessions reads Claude and Codex transcripts through DuckDB and
// serves them as an orchestrator.DataProvider.
package sessions

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/pkg/models"
)

// backend is one source's view of its transcripts
type backend interface {
	listProjects(ctx context.Context) ([]models.Project, error)
	listSessions(ctx context.Context, projectID string) ([]models.Session, error)
	listMessages(ctx context.Context, ref models.SessionRef, page, pageSize int) (models.MessagePage, error)
	search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)
	stats(ctx context.Context) (models.TokenUsageSummary, error)
	sessionFile(ctx context.Context, ref models.SessionRef) (string, error)
	resumeCommand(sessionID string) []string
	debug(ctx context.Context, ref models.SessionRef) (*SessionDebugInfo, error)
}

// Config locates the transcripts and controls how sessions are resumed
type Config struct {
	ClaudeDir    string
	CodexDir     string
	QueryTimeout time.Duration
	Launcher     Launcher
	Logger       *slog.Logger
}

// Provider routes every call to the backend of the requested source
type Provider struct {
	backends map[models.Source]backend
	launcher Launcher
	logger   *slog.Logger
}

var _ orchestrator.DataProvider = (*Provider)(nil)

// NewProvider creates a provider over an open DuckDB handle
func NewProvider(database *sql.DB, cfg Config) *Provider {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Launcher == nil {
		cfg.Launcher = NewTerminalLauncher("")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return &Provider{
		backends: map[models.Source]backend{
			models.SourceClaude: &claudeBackend{db: database, root: cfg.ClaudeDir, timeout: cfg.QueryTimeout},
			models.SourceCodex:  &codexBackend{db: database, root: cfg.CodexDir, timeout: cfg.QueryTimeout},
		},
		launcher: cfg.Launcher,
		logger:   cfg.Logger,
	}
}

// SetLauncher replaces the resume launcher
func (p *Provider) SetLauncher(l Launcher) {
	p.launcher = l
}

func (p *Provider) backend(source models.Source) (backend, error) {
	b, ok := p.backends[source]
	if !ok {
		return nil, errors.Wrapf(orchestrator.ErrNotFound, "source %q", source)
	}
	return b, nil
}

// ListProjects lists the projects of source, most recently active first
func (p *Provider) ListProjects(ctx context.Context, source models.Source) ([]models.Project, error) {
	b, err := p.backend(source)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	projects, err := b.listProjects(ctx)
	p.logger.Debug("Listed projects", "source", source, "count", len(projects), "duration", time.Since(start), "error", err)
	return projects, err
}

// ListSessions lists the sessions of one project, most recent first
func (p *Provider) ListSessions(ctx context.Context, source models.Source, projectID string) ([]models.Session, error) {
	b, err := p.backend(source)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sessions, err := b.listSessions(ctx, projectID)
	p.logger.Debug("Listed sessions", "source", source, "project", projectID, "count", len(sessions), "duration", time.Since(start), "error", err)
	return sessions, err
}

// ListMessages returns one page of a session's messages in chronological order
func (p *Provider) ListMessages(ctx context.Context, source models.Source, ref models.SessionRef, page, pageSize int) (models.MessagePage, error) {
	b, err := p.backend(source)
	if err != nil {
		return models.MessagePage{}, err
	}
	if page < 0 || pageSize <= 0 {
		return models.MessagePage{}, errors.Errorf("invalid page %d of size %d", page, pageSize)
	}
	start := time.Now()
	result, err := b.listMessages(ctx, ref, page, pageSize)
	p.logger.Debug("Listed messages", "source", source, "session", ref.String(), "page", page,
		"count", len(result.Messages), "total", result.Total, "duration", time.Since(start), "error", err)
	return result, err
}

// Search finds messages containing query, case-insensitively
func (p *Provider) Search(ctx context.Context, source models.Source, query string, maxResults int) ([]models.SearchResult, error) {
	b, err := p.backend(source)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = orchestrator.DefaultMaxResults
	}
	start := time.Now()
	results, err := b.search(ctx, query, maxResults)
	p.logger.Debug("Searched", "source", source, "query", query, "count", len(results), "duration", time.Since(start), "error", err)
	return results, err
}

// GetStats aggregates token usage over every transcript of source
func (p *Provider) GetStats(ctx context.Context, source models.Source) (models.TokenUsageSummary, error) {
	b, err := p.backend(source)
	if err != nil {
		return models.TokenUsageSummary{}, err
	}
	start := time.Now()
	summary, err := b.stats(ctx)
	p.logger.Debug("Computed stats", "source", source, "total_tokens", summary.TotalTokens, "duration", time.Since(start), "error", err)
	return summary, err
}

// ResumeSession reopens a session with its CLI in projectPath
func (p *Provider) ResumeSession(ctx context.Context, source models.Source, ref models.SessionRef, projectPath string) error {
	b, err := p.backend(source)
	if err != nil {
		return err
	}
	if info, err := os.Stat(projectPath); err != nil || !info.IsDir() {
		return errors.Wrapf(orchestrator.ErrNotFound, "project directory %s", projectPath)
	}

	argv := b.resumeCommand(ref.SessionID)
	p.logger.Info("Launching resume", "source", source, "session", ref.String(), "dir", projectPath, "argv", argv)
	return p.launcher.Launch(ctx, projectPath, argv)
}

// DeleteSession removes the transcript file of a session
func (p *Provider) DeleteSession(ctx context.Context, source models.Source, ref models.SessionRef) error {
	b, err := p.backend(source)
	if err != nil {
		return err
	}
	path, err := b.sessionFile(ctx, ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(orchestrator.ErrNotFound, "session %s", ref)
		}
		return errors.Wrapf(orchestrator.ErrIO, "remove %s: %v", path, err)
	}
	p.logger.Info("Deleted session", "source", source, "session", ref.String(), "file", path)
	return nil
}

// DebugSession returns the raw facts behind a session
func (p *Provider) DebugSession(ctx context.Context, source models.Source, ref models.SessionRef) (*SessionDebugInfo, error) {
	b, err := p.backend(source)
	if err != nil {
		return nil, err
	}
	return b.debug(ctx, ref)
}
