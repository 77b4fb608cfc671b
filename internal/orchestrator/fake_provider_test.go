package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/strrl/claude-history/pkg/models"
)

// fakeProvider is an in-memory DataProvider. It never blocks: tests control
// ordering by choosing when to run the commands the store hands back.
type fakeProvider struct {
	mu       sync.Mutex
	projects map[models.Source][]models.Project
	sessions map[string][]models.Session
	messages map[models.SessionRef][]models.Message
	results  map[string][]models.SearchResult
	stats    map[models.Source]models.TokenUsageSummary
	errs     map[string]error
	calls    map[string]int
	ctxs     map[string][]context.Context
	searches []string
	resumed  []string
	deleted  []models.SessionRef
}

func newFakeProvider() *fakeProvider {
	f := &fakeProvider{
		projects: map[models.Source][]models.Project{
			models.SourceClaude: {
				{ID: "-home-dev-p1", DisplayPath: "/home/dev/p1", ShortName: "p1", SessionCount: 3},
				{ID: "-home-dev-p2", DisplayPath: "/home/dev/p2", ShortName: "p2", SessionCount: 1},
			},
			models.SourceCodex: {
				{ID: "-home-dev-c1", DisplayPath: "/home/dev/c1", ShortName: "c1", SessionCount: 1},
			},
		},
		sessions: map[string][]models.Session{
			"-home-dev-p1": {
				{SessionID: "s1", MessageCount: 120, ProjectPath: "/home/dev/p1"},
				{SessionID: "s2", MessageCount: 10, Cwd: "/home/dev/p1/sub"},
				{SessionID: "s3", MessageCount: 10},
			},
			"-home-dev-p2": {
				{SessionID: "s4", MessageCount: 10},
			},
			"-home-dev-c1": {
				{SessionID: "c1s1", MessageCount: 5},
			},
		},
		messages: make(map[models.SessionRef][]models.Message),
		results:  make(map[string][]models.SearchResult),
		stats: map[models.Source]models.TokenUsageSummary{
			models.SourceClaude: {TotalTokens: 1000, InputTokens: 600, OutputTokens: 400, SessionCount: 4},
			models.SourceCodex:  {TotalTokens: 50, InputTokens: 30, OutputTokens: 20, SessionCount: 1},
		},
		errs:  make(map[string]error),
		calls: make(map[string]int),
		ctxs:  make(map[string][]context.Context),
	}
	for projectID, sessions := range f.sessions {
		for _, sess := range sessions {
			ref := models.SessionRef{ProjectID: projectID, SessionID: sess.SessionID}
			f.messages[ref] = transcript(ref, sess.MessageCount)
		}
	}
	return f
}

func transcript(ref models.SessionRef, n int) []models.Message {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := make([]models.Message, n)
	for i := range msgs {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs[i] = models.Message{
			UUID:      fmt.Sprintf("%s-%03d", ref.SessionID, i),
			Role:      role,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Content:   []models.ContentBlock{{Kind: models.BlockText, Text: fmt.Sprintf("message %d", i)}},
		}
	}
	return msgs
}

func (f *fakeProvider) record(op string, ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.ctxs[op] = append(f.ctxs[op], ctx)
	return f.errs[op]
}

func (f *fakeProvider) setErr(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeProvider) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProvider) contexts(op string) []context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]context.Context(nil), f.ctxs[op]...)
}

func (f *fakeProvider) ListProjects(ctx context.Context, source models.Source) ([]models.Project, error) {
	if err := f.record("projects", ctx); err != nil {
		return nil, err
	}
	return append([]models.Project(nil), f.projects[source]...), nil
}

func (f *fakeProvider) ListSessions(ctx context.Context, _ models.Source, projectID string) ([]models.Session, error) {
	if err := f.record("sessions", ctx); err != nil {
		return nil, err
	}
	sessions, ok := f.sessions[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return append([]models.Session(nil), sessions...), nil
}

func (f *fakeProvider) ListMessages(ctx context.Context, _ models.Source, ref models.SessionRef, page, pageSize int) (models.MessagePage, error) {
	if err := f.record("messages", ctx); err != nil {
		return models.MessagePage{}, err
	}
	all, ok := f.messages[ref]
	if !ok {
		return models.MessagePage{}, fmt.Errorf("session %s: %w", ref, ErrNotFound)
	}
	start := page * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return models.MessagePage{
		Messages: append([]models.Message(nil), all[start:end]...),
		Total:    len(all),
		Page:     page,
		PageSize: pageSize,
		HasMore:  end < len(all),
	}, nil
}

func (f *fakeProvider) Search(ctx context.Context, _ models.Source, query string, maxResults int) ([]models.SearchResult, error) {
	err := f.record("search", ctx)
	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	results := f.results[query]
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (f *fakeProvider) GetStats(ctx context.Context, source models.Source) (models.TokenUsageSummary, error) {
	if err := f.record("stats", ctx); err != nil {
		return models.TokenUsageSummary{}, err
	}
	return f.stats[source], nil
}

func (f *fakeProvider) ResumeSession(ctx context.Context, _ models.Source, _ models.SessionRef, projectPath string) error {
	if err := f.record("resume", ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.resumed = append(f.resumed, projectPath)
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) DeleteSession(ctx context.Context, _ models.Source, ref models.SessionRef) error {
	if err := f.record("delete", ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, ref)
	f.mu.Unlock()
	return nil
}

// collect runs cmd without applying anything and returns the messages it
// produced, flattening batches.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	default:
		return []tea.Msg{msg}
	}
}

// apply feeds msgs to the store and returns the follow-up commands
func apply(s *Store, msgs []tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for _, msg := range msgs {
		cmds = append(cmds, s.Update(msg))
	}
	return tea.Batch(cmds...)
}

func drive(t *testing.T, s *Store, cmd tea.Cmd) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, Drive(ctx, s, cmd))
}

func newTestStore(t *testing.T, f *fakeProvider, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithSearchDebounce(10 * time.Millisecond), WithReloadDelay(10 * time.Millisecond)}, opts...)
	s := New(f, opts...)
	t.Cleanup(s.Close)
	return s
}

var (
	refS1 = models.SessionRef{ProjectID: "-home-dev-p1", SessionID: "s1"}
	refS2 = models.SessionRef{ProjectID: "-home-dev-p1", SessionID: "s2"}
	refS3 = models.SessionRef{ProjectID: "-home-dev-p1", SessionID: "s3"}
	refS4 = models.SessionRef{ProjectID: "-home-dev-p2", SessionID: "s4"}
)
