// Package orchestrator coordinates views with an asynchronous DataProvider.
//
// The Store owns navigation state, the paginated message window of the
// selected session, the debounced search and the stats cache. Store methods
// update state synchronously and return a tea.Cmd that performs the provider
// call; the resulting message must be passed back through Store.Update, which
// applies it only if it is still the latest request of its stream.
//
// A Store is not safe for concurrent use. Drive it from a single goroutine:
// the bubbletea program loop, or Drive for non-interactive callers.
package orchestrator

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/claude-history/pkg/models"
)

const (
	// DefaultReloadDelay coalesces bursts of on-disk changes
	DefaultReloadDelay = 500 * time.Millisecond

	reloadDebounceKey = "reload"
)

// Section names the part of the state a Change refers to
type Section string

const (
	SectionProjects Section = "projects"
	SectionSessions Section = "sessions"
	SectionMessages Section = "messages"
	SectionSearch   Section = "search"
	SectionStats    Section = "stats"
	SectionResume   Section = "resume"
	SectionDelete   Section = "delete"
	SectionSource   Section = "source"
)

// Change is delivered to subscribers after state changes
type Change struct {
	Section Section
	Err     error
}

type options struct {
	logger      *slog.Logger
	source      models.Source
	pageSize    int
	debounce    time.Duration
	maxResults  int
	reloadDelay time.Duration
}

// Option configures a Store
type Option func(*options)

// WithLogger sets the logger used for request tracing
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSource sets the initial data source
func WithSource(s models.Source) Option {
	return func(o *options) { o.source = s }
}

// WithPageSize sets the number of messages per page
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithSearchDebounce sets how long query input must settle
func WithSearchDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithMaxResults caps the number of search hits
func WithMaxResults(n int) Option {
	return func(o *options) { o.maxResults = n }
}

// WithReloadDelay sets how long on-disk changes must settle before reloading
func WithReloadDelay(d time.Duration) Option {
	return func(o *options) { o.reloadDelay = d }
}

// Store is the observable state object consumed by views
type Store struct {
	provider DataProvider
	logger   *slog.Logger
	source   models.Source

	selection Selection

	projects        []models.Project
	projectsLoading bool
	projectsErr     error
	projectsGen     uint64

	sessions        []models.Session
	sessionsProject string
	sessionsLoading bool
	sessionsErr     error
	sessionsGen     uint64

	pager  *Pager
	search *SearchCoordinator
	stats  *StatsAggregator
	reload *Debouncer

	resumeErr error
	deleteErr error

	requests    *inflight
	subscribers map[int]func(Change)
	nextSub     int
	closed      bool
}

// New creates a Store over provider
func New(provider DataProvider, opts ...Option) *Store {
	o := options{
		source:      models.SourceClaude,
		pageSize:    DefaultPageSize,
		debounce:    DefaultSearchDebounce,
		maxResults:  DefaultMaxResults,
		reloadDelay: DefaultReloadDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return &Store{
		provider:    provider,
		logger:      o.logger,
		source:      o.source,
		pager:       NewPager(o.pageSize),
		search:      NewSearchCoordinator(o.debounce, o.maxResults),
		stats:       NewStatsAggregator(),
		reload:      NewDebouncer(reloadDebounceKey, o.reloadDelay),
		requests:    newInflight(),
		subscribers: make(map[int]func(Change)),
	}
}

// Close cancels in-flight provider calls and drops subscribers. Results that
// arrive afterwards are ignored.
func (s *Store) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.requests.close()
	s.subscribers = nil
	s.logger.Debug("Store closed")
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	if s.closed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() { delete(s.subscribers, id) }
}

func (s *Store) notify(section Section, err error) {
	for _, fn := range s.subscribers {
		fn(Change{Section: section, Err: err})
	}
}

// Source returns the active data source
func (s *Store) Source() models.Source { return s.source }

// Selection returns the navigation state
func (s *Store) Selection() Selection { return s.selection }

// Projects returns the project list of the active source
func (s *Store) Projects() []models.Project { return s.projects }

// ProjectsLoading reports whether the project list is loading
func (s *Store) ProjectsLoading() bool { return s.projectsLoading }

// ProjectsErr returns the last project list failure
func (s *Store) ProjectsErr() error { return s.projectsErr }

// Project looks up a loaded project by id
func (s *Store) Project(id string) (models.Project, bool) {
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

// Sessions returns the sessions of the selected project
func (s *Store) Sessions() []models.Session { return s.sessions }

// SessionsLoading reports whether the session list is loading
func (s *Store) SessionsLoading() bool { return s.sessionsLoading }

// SessionsErr returns the last session list failure
func (s *Store) SessionsErr() error { return s.sessionsErr }

// Session looks up a loaded session of the selected project
func (s *Store) Session(id string) (models.Session, bool) {
	for _, sess := range s.sessions {
		if sess.SessionID == id {
			return sess, true
		}
	}
	return models.Session{}, false
}

// Messages returns the paginated message window of the selected session
func (s *Store) Messages() *Pager { return s.pager }

// Search returns the search state
func (s *Store) Search() *SearchCoordinator { return s.search }

// Stats returns the cached summary of the active source
func (s *Store) Stats() (models.TokenUsageSummary, bool) { return s.stats.Summary(s.source) }

// StatsLoading reports whether stats are loading
func (s *Store) StatsLoading() bool { return s.stats.Loading() }

// StatsErr returns the last stats failure
func (s *Store) StatsErr() error { return s.stats.Err() }

// ResumeErr returns the last resume failure
func (s *Store) ResumeErr() error { return s.resumeErr }

// DeleteErr returns the last delete failure
func (s *Store) DeleteErr() error { return s.deleteErr }

// LoadProjects fetches the project list of the active source
func (s *Store) LoadProjects() tea.Cmd {
	return s.loadProjects(true)
}

func (s *Store) loadProjects(clear bool) tea.Cmd {
	if s.closed {
		return nil
	}
	s.projectsGen++
	if clear {
		s.projects = nil
	}
	s.projectsLoading = true
	s.projectsErr = nil

	req := s.requests.begin(streamProjects, s.projectsGen)
	provider, source := s.provider, s.source
	s.trace(streamProjects, req, "source", source)
	s.notify(SectionProjects, nil)

	return func() tea.Msg {
		projects, err := provider.ListProjects(req.ctx, source)
		return ProjectsLoadedMsg{Gen: req.Gen, RequestID: req.ID, Source: source, Projects: projects, Err: err}
	}
}

// SelectProject moves to projectSelected and loads the project's sessions.
// Session level state is cleared before the load starts.
func (s *Store) SelectProject(projectID string) tea.Cmd {
	if s.closed {
		return nil
	}
	s.selection = Selection{Kind: SelectionProject, ProjectID: projectID}
	s.clearMessages()
	return s.loadSessions(projectID, true)
}

func (s *Store) loadSessions(projectID string, clear bool) tea.Cmd {
	s.sessionsGen++
	if clear || s.sessionsProject != projectID {
		s.sessions = nil
	}
	s.sessionsProject = projectID
	s.sessionsLoading = true
	s.sessionsErr = nil

	req := s.requests.begin(streamSessions, s.sessionsGen)
	provider, source := s.provider, s.source
	s.trace(streamSessions, req, "project", projectID)
	s.notify(SectionSessions, nil)

	return func() tea.Msg {
		sessions, err := provider.ListSessions(req.ctx, source, projectID)
		return SessionsLoadedMsg{Gen: req.Gen, RequestID: req.ID, ProjectID: projectID, Sessions: sessions, Err: err}
	}
}

// SelectSession moves to sessionSelected and loads the first page. Selecting
// a session of another project also moves the project selection. Selecting
// the current session again reloads its first page.
func (s *Store) SelectSession(ref models.SessionRef) tea.Cmd {
	if s.closed || ref.IsZero() {
		return nil
	}

	var cmds []tea.Cmd
	if !s.selection.HasProject() || s.selection.ProjectID != ref.ProjectID {
		cmds = append(cmds, s.loadSessions(ref.ProjectID, true))
	}

	same := s.selection.Ref() == ref
	s.selection = Selection{Kind: SelectionSession, ProjectID: ref.ProjectID, SessionID: ref.SessionID}
	if !same {
		s.requests.cancel(streamMessages)
		s.pager.reset(ref)
	}

	cmds = append(cmds, s.LoadFirstPage())
	return tea.Batch(cmds...)
}

// ClearSelection returns to the initial state, dropping sessions and messages
func (s *Store) ClearSelection() {
	if s.closed {
		return
	}
	s.selection = Selection{}
	s.sessionsGen++
	s.sessions = nil
	s.sessionsProject = ""
	s.sessionsLoading = false
	s.sessionsErr = nil
	s.requests.cancel(streamSessions)
	s.clearMessages()
	s.notify(SectionSessions, nil)
}

// Back moves one level up the navigation state machine
func (s *Store) Back() {
	switch s.selection.Kind {
	case SelectionSession:
		s.selection = Selection{Kind: SelectionProject, ProjectID: s.selection.ProjectID}
		s.clearMessages()
	case SelectionProject:
		s.ClearSelection()
	}
}

func (s *Store) clearMessages() {
	s.requests.cancel(streamMessages)
	s.pager.reset(models.SessionRef{})
	s.notify(SectionMessages, nil)
}

// LoadFirstPage (re)loads page 0 of the selected session
func (s *Store) LoadFirstPage() tea.Cmd {
	if s.closed {
		return nil
	}
	req, ok := s.pager.beginFirst()
	if !ok {
		return nil
	}
	return s.dispatchPage(req)
}

// LoadNextPage requests the page after the last one applied. It is a no-op
// while a page is loading or once the session has no more pages.
func (s *Store) LoadNextPage() tea.Cmd {
	if s.closed {
		return nil
	}
	req, ok := s.pager.beginNext()
	if !ok {
		return nil
	}
	return s.dispatchPage(req)
}

func (s *Store) dispatchPage(p pageRequest) tea.Cmd {
	req := s.requests.begin(streamMessages, p.Gen)
	provider, source := s.provider, s.source
	s.trace(streamMessages, req, "session", p.Ref.String(), "page", p.Page)
	s.notify(SectionMessages, nil)

	return func() tea.Msg {
		page, err := provider.ListMessages(req.ctx, source, p.Ref, p.Page, p.PageSize)
		return PageLoadedMsg{Gen: req.Gen, RequestID: req.ID, Ref: p.Ref, Page: p.Page, Result: page, Err: err}
	}
}

// SetQuery records the search input and schedules a debounced search. A
// blank query clears results at once without contacting the provider.
func (s *Store) SetQuery(q string) tea.Cmd {
	if s.closed {
		return nil
	}
	cmd, cleared := s.search.setQuery(q)
	if cleared {
		s.requests.cancel(streamSearch)
	}
	s.notify(SectionSearch, nil)
	return cmd
}

// FlushSearch dispatches the current query without waiting for the debounce
func (s *Store) FlushSearch() tea.Cmd {
	if s.closed {
		return nil
	}
	req, ok := s.search.flush()
	if !ok {
		s.requests.cancel(streamSearch)
		s.notify(SectionSearch, nil)
		return nil
	}
	return s.dispatchSearch(req)
}

func (s *Store) dispatchSearch(q searchRequest) tea.Cmd {
	req := s.requests.begin(streamSearch, q.Gen)
	provider, source := s.provider, s.source
	s.trace(streamSearch, req, "query", q.Query)
	s.notify(SectionSearch, nil)

	return func() tea.Msg {
		results, err := provider.Search(req.ctx, source, q.Query, q.MaxResults)
		return SearchResultMsg{Gen: req.Gen, RequestID: req.ID, Query: q.Query, Results: results, Err: err}
	}
}

// LoadStats loads the usage summary of the active source, serving the cached
// value when there is one.
func (s *Store) LoadStats() tea.Cmd {
	if s.closed {
		return nil
	}
	req, ok := s.stats.load(s.source)
	if !ok {
		return nil
	}
	return s.dispatchStats(req)
}

// RefreshStats refetches the usage summary, keeping the cached value visible
// until the new one arrives.
func (s *Store) RefreshStats() tea.Cmd {
	if s.closed {
		return nil
	}
	return s.dispatchStats(s.stats.refresh(s.source))
}

func (s *Store) dispatchStats(st statsRequest) tea.Cmd {
	req := s.requests.begin(streamStats, st.Gen)
	provider := s.provider
	s.trace(streamStats, req, "source", st.Source)
	s.notify(SectionStats, nil)

	return func() tea.Msg {
		summary, err := provider.GetStats(req.ctx, st.Source)
		return StatsLoadedMsg{Gen: req.Gen, RequestID: req.ID, Source: st.Source, Summary: summary, Err: err}
	}
}

// SwitchSource clears the selection, invalidates cached stats and reloads
// projects from src. A non-empty search query is re-run against src.
func (s *Store) SwitchSource(src models.Source) tea.Cmd {
	if s.closed || src == s.source {
		return nil
	}
	s.logger.Info("Switching source", "from", s.source, "to", src)
	s.source = src
	s.ClearSelection()
	s.stats.invalidate()
	s.requests.cancel(streamStats)
	s.notify(SectionSource, nil)

	cmds := []tea.Cmd{s.loadProjects(true)}
	if req, ok := s.search.flush(); ok {
		cmds = append(cmds, s.dispatchSearch(req))
	}
	return tea.Batch(cmds...)
}

// Reload refetches projects and the selected project's sessions without
// clearing what is displayed. The message window is left alone.
func (s *Store) Reload() tea.Cmd {
	if s.closed {
		return nil
	}
	cmds := []tea.Cmd{s.loadProjects(false)}
	if s.selection.HasProject() {
		cmds = append(cmds, s.loadSessions(s.selection.ProjectID, false))
	}
	return tea.Batch(cmds...)
}

// Resume asks the provider to reopen a session in an external terminal. The
// project path comes from the session, falling back to the project.
func (s *Store) Resume(ref models.SessionRef) tea.Cmd {
	if s.closed || ref.IsZero() {
		return nil
	}
	path := s.ResumePath(ref)
	if path == "" {
		s.resumeErr = fmt.Errorf("resume %s: no project path: %w", ref, ErrNotFound)
		s.notify(SectionResume, s.resumeErr)
		return nil
	}
	s.resumeErr = nil

	req := s.requests.detached()
	provider, source := s.provider, s.source
	s.logger.Info("Resuming session", "request_id", req.ID, "session", ref.String(), "path", path)

	return func() tea.Msg {
		return ResumeResultMsg{Ref: ref, Err: provider.ResumeSession(req.ctx, source, ref, path)}
	}
}

// ResumePath resolves the directory a session should be resumed in
func (s *Store) ResumePath(ref models.SessionRef) string {
	if s.sessionsProject == ref.ProjectID {
		if sess, ok := s.Session(ref.SessionID); ok {
			if sess.ProjectPath != "" {
				return sess.ProjectPath
			}
			if sess.Cwd != "" {
				return sess.Cwd
			}
		}
	}
	if p, ok := s.Project(ref.ProjectID); ok {
		return p.DisplayPath
	}
	return ""
}

// DeleteSession removes a session through the provider
func (s *Store) DeleteSession(ref models.SessionRef) tea.Cmd {
	if s.closed || ref.IsZero() {
		return nil
	}
	s.deleteErr = nil
	req := s.requests.detached()
	provider, source := s.provider, s.source
	s.logger.Info("Deleting session", "request_id", req.ID, "session", ref.String())

	return func() tea.Msg {
		return DeleteResultMsg{Source: source, Ref: ref, Err: provider.DeleteSession(req.ctx, source, ref)}
	}
}

// Update applies a result message. Stale results are dropped. The returned
// command, if any, must be run like the ones returned by the action methods.
func (s *Store) Update(msg tea.Msg) tea.Cmd {
	if s.closed {
		return nil
	}

	switch msg := msg.(type) {
	case ProjectsLoadedMsg:
		s.requests.finish(streamProjects, msg.RequestID)
		if msg.Gen != s.projectsGen || msg.Source != s.source {
			s.stale(streamProjects, msg.RequestID, msg.Gen)
			return nil
		}
		s.projectsLoading = false
		if err := visible(msg.Err); err != nil {
			s.projectsErr = fmt.Errorf("load projects: %w", err)
			s.logger.Error("Failed to load projects", "source", msg.Source, "error", msg.Err)
		} else if msg.Err == nil {
			s.projects = msg.Projects
		}
		s.notify(SectionProjects, s.projectsErr)

	case SessionsLoadedMsg:
		s.requests.finish(streamSessions, msg.RequestID)
		if msg.Gen != s.sessionsGen || msg.ProjectID != s.sessionsProject {
			s.stale(streamSessions, msg.RequestID, msg.Gen)
			return nil
		}
		s.sessionsLoading = false
		if err := visible(msg.Err); err != nil {
			s.sessionsErr = fmt.Errorf("load sessions of %s: %w", msg.ProjectID, err)
			s.logger.Error("Failed to load sessions", "project", msg.ProjectID, "error", msg.Err)
		} else if msg.Err == nil {
			s.sessions = msg.Sessions
		}
		s.notify(SectionSessions, s.sessionsErr)

	case PageLoadedMsg:
		s.requests.finish(streamMessages, msg.RequestID)
		if !s.pager.apply(msg) {
			s.stale(streamMessages, msg.RequestID, msg.Gen, "session", msg.Ref.String(), "page", msg.Page)
			return nil
		}
		if err := s.pager.Err(); err != nil {
			s.logger.Error("Failed to load messages", "session", msg.Ref.String(), "page", msg.Page, "error", msg.Err)
		} else {
			s.logger.Debug("Applied page", "session", msg.Ref.String(), "page", msg.Page,
				"items", len(s.pager.Items()), "total", s.pager.Total(), "has_more", s.pager.HasMore())
		}
		s.notify(SectionMessages, s.pager.Err())

	case DebounceMsg:
		switch msg.Key {
		case searchDebounceKey:
			req, ok := s.search.fire(msg)
			if !ok {
				if !s.search.Loading() {
					s.notify(SectionSearch, nil)
				}
				return nil
			}
			return s.dispatchSearch(req)
		case reloadDebounceKey:
			if s.reload.Fire(msg) {
				return s.Reload()
			}
		}

	case SearchResultMsg:
		s.requests.finish(streamSearch, msg.RequestID)
		if !s.search.apply(msg) {
			s.stale(streamSearch, msg.RequestID, msg.Gen, "query", msg.Query)
			return nil
		}
		if err := s.search.Err(); err != nil {
			s.logger.Error("Search failed", "query", msg.Query, "error", msg.Err)
		}
		s.notify(SectionSearch, s.search.Err())

	case StatsLoadedMsg:
		s.requests.finish(streamStats, msg.RequestID)
		if !s.stats.apply(msg) {
			s.stale(streamStats, msg.RequestID, msg.Gen)
			return nil
		}
		if err := s.stats.Err(); err != nil {
			s.logger.Error("Failed to load stats", "source", msg.Source, "error", msg.Err)
		}
		s.notify(SectionStats, s.stats.Err())

	case ResumeResultMsg:
		if err := visible(msg.Err); err != nil {
			s.resumeErr = fmt.Errorf("resume %s: %w", msg.Ref, err)
			s.logger.Error("Failed to resume session", "session", msg.Ref.String(), "error", msg.Err)
		}
		s.notify(SectionResume, s.resumeErr)

	case DeleteResultMsg:
		s.applyDelete(msg)

	case ChangedMsg:
		s.logger.Debug("Transcripts changed", "paths", len(msg.Paths))
		return s.reload.Trigger()
	}

	return nil
}

func (s *Store) applyDelete(msg DeleteResultMsg) {
	err := visible(msg.Err)
	if err != nil && Classify(err) != ErrNotFound {
		s.deleteErr = fmt.Errorf("delete %s: %w", msg.Ref, err)
		s.logger.Error("Failed to delete session", "session", msg.Ref.String(), "error", msg.Err)
		s.notify(SectionDelete, s.deleteErr)
		return
	}
	if msg.Err != nil && err == nil {
		return
	}
	if msg.Source != s.source {
		return
	}

	if s.sessionsProject == msg.Ref.ProjectID {
		kept := s.sessions[:0:0]
		for _, sess := range s.sessions {
			if sess.SessionID != msg.Ref.SessionID {
				kept = append(kept, sess)
			}
		}
		if len(kept) != len(s.sessions) {
			for i := range s.projects {
				if s.projects[i].ID == msg.Ref.ProjectID && s.projects[i].SessionCount > 0 {
					s.projects[i].SessionCount--
				}
			}
		}
		s.sessions = kept
	}
	if s.selection.Ref() == msg.Ref {
		s.selection = Selection{Kind: SelectionProject, ProjectID: msg.Ref.ProjectID}
		s.clearMessages()
	}
	s.logger.Info("Session deleted", "session", msg.Ref.String())
	s.notify(SectionSessions, nil)
	s.notify(SectionDelete, nil)
}

func (s *Store) trace(st stream, req request, attrs ...any) {
	args := append([]any{"stream", string(st), "request_id", req.ID, "generation", req.Gen}, attrs...)
	s.logger.Debug("Dispatching request", args...)
}

func (s *Store) stale(st stream, requestID string, gen uint64, attrs ...any) {
	args := append([]any{"stream", string(st), "request_id", requestID, "generation", gen}, attrs...)
	s.logger.Debug("Discarding stale response", args...)
}
