package orchestrator

import (
	"context"

	"github.com/strrl/claude-history/pkg/models"
)

// DataProvider is the asynchronous backend the store coordinates. Every call
// may be slow and may fail; the store never assumes synchronous completion.
// Implementations should honour ctx cancellation but are not required to.
type DataProvider interface {
	ListProjects(ctx context.Context, source models.Source) ([]models.Project, error)
	ListSessions(ctx context.Context, source models.Source, projectID string) ([]models.Session, error)
	ListMessages(ctx context.Context, source models.Source, ref models.SessionRef, page, pageSize int) (models.MessagePage, error)
	Search(ctx context.Context, source models.Source, query string, maxResults int) ([]models.SearchResult, error)
	GetStats(ctx context.Context, source models.Source) (models.TokenUsageSummary, error)
	ResumeSession(ctx context.Context, source models.Source, ref models.SessionRef, projectPath string) error
	DeleteSession(ctx context.Context, source models.Source, ref models.SessionRef) error
}
