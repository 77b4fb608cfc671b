package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/pkg/models"
)

type viewMode int

const (
	projectView viewMode = iota
	sessionView
	searchView
	statsView
)

// linesPerSession is the height of one entry in the session list
const linesPerSession = 3

type model struct {
	store *orchestrator.Store
	opts  Options

	currentMode  viewMode
	previousMode viewMode

	projectCursor int
	sessionCursor int
	resultCursor  int

	viewport      viewport.Model
	leftViewport  viewport.Model // sessions list in split view
	rightViewport viewport.Model // messages in split view
	searchInput   textinput.Model
	loading       *LoadingIndicator

	confirmDelete *models.SessionRef
	status        string
	statusErr     bool
	statusID      int

	result Result
	ready  bool
	width  int
	height int
}

func initialModel(store *orchestrator.Store, opts Options) model {
	if opts.ScrollThreshold <= 0 {
		opts.ScrollThreshold = orchestrator.DefaultScrollThreshold
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = defaultStatusTTL
	}

	input := textinput.New()
	input.Placeholder = "Search all sessions"
	input.Prompt = "/ "
	input.CharLimit = 200
	input.Cursor.SetMode(cursor.CursorStatic)

	return model{
		store:       store,
		opts:        opts,
		currentMode: projectView,
		searchInput: input,
		loading:     NewLoadingIndicator("Loading..."),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.store.LoadProjects(), m.loading.Tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case spinner.TickMsg:
		return m, m.loading.Update(msg)

	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		if m.currentMode == sessionView && msg.Action == tea.MouseActionPress {
			switch msg.Button {
			case tea.MouseButtonWheelDown:
				cmds = append(cmds, m.scrollMessages(3))
			case tea.MouseButtonWheelUp:
				cmds = append(cmds, m.scrollMessages(-3))
			}
		}

	case orchestrator.ResumeResultMsg:
		cmds = append(cmds, m.store.Update(msg))
		if err := m.store.ResumeErr(); err != nil {
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Resume failed: %v", err), true))
		} else if msg.Err == nil {
			cmds = append(cmds, m.setStatus("Session opened in a new terminal", false))
		}

	case orchestrator.DeleteResultMsg:
		cmds = append(cmds, m.store.Update(msg))
		if err := m.store.DeleteErr(); err != nil {
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Delete failed: %v", err), true))
		} else {
			cmds = append(cmds, m.setStatus("Session deleted", false))
			cmds = append(cmds, m.followSelection())
		}

	case orchestrator.SessionsLoadedMsg:
		cmds = append(cmds, m.store.Update(msg))
		cmds = append(cmds, m.followSelection())

	case orchestrator.PageLoadedMsg:
		cmds = append(cmds, m.store.Update(msg))
		m.refresh()
		cmds = append(cmds, m.checkScroll())

	default:
		if isStoreMsg(msg) {
			cmds = append(cmds, m.store.Update(msg))
		}
	}

	m.clampCursors()
	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height

	leftWidth := width/2 - 1
	rightWidth := width - leftWidth - 1
	viewHeight := height - 3

	if !m.ready {
		m.viewport = viewport.New(width, viewHeight)
		m.leftViewport = viewport.New(leftWidth, viewHeight)
		m.rightViewport = viewport.New(rightWidth, viewHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewHeight
		m.leftViewport.Width = leftWidth
		m.leftViewport.Height = viewHeight
		m.rightViewport.Width = rightWidth
		m.rightViewport.Height = viewHeight
	}
	m.searchInput.Width = width - 4
	// the search view spends two lines on the input
	if m.currentMode == searchView {
		m.viewport.Height = viewHeight - 2
	}
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirmDelete != nil {
		ref := *m.confirmDelete
		m.confirmDelete = nil
		switch msg.String() {
		case "y", "Y":
			return m, tea.Batch(m.store.DeleteSession(ref), m.setStatus("Deleting session...", false))
		default:
			return m, m.setStatus("Delete cancelled", false)
		}
	}

	if m.currentMode == searchView {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "tab":
		return m, m.switchSource()

	case "/":
		return m, m.openSearch()

	case "s":
		if m.currentMode != statsView {
			m.previousMode = m.currentMode
			m.currentMode = statsView
			return m, m.store.LoadStats()
		}
	}

	switch m.currentMode {
	case projectView:
		return m.handleProjectKey(msg)
	case sessionView:
		return m.handleSessionKey(msg)
	case statsView:
		switch msg.String() {
		case "r":
			return m, m.store.RefreshStats()
		case "esc", "backspace":
			m.currentMode = m.previousMode
			if m.currentMode == statsView || m.currentMode == searchView {
				m.currentMode = projectView
			}
		}
	}
	return m, nil
}

func (m model) handleProjectKey(msg tea.KeyMsg) (model, tea.Cmd) {
	projects := m.store.Projects()

	switch msg.String() {
	case "up", "k":
		if m.projectCursor > 0 {
			m.projectCursor--
		}
	case "down", "j":
		if m.projectCursor < len(projects)-1 {
			m.projectCursor++
		}
	case "enter":
		if m.projectCursor < len(projects) {
			m.currentMode = sessionView
			m.sessionCursor = 0
			m.rightViewport.GotoTop()
			return m, m.store.SelectProject(projects[m.projectCursor].ID)
		}
	}
	return m, nil
}

func (m model) handleSessionKey(msg tea.KeyMsg) (model, tea.Cmd) {
	sessions := m.store.Sessions()
	projectID := m.store.Selection().ProjectID

	switch msg.String() {
	case "up", "k":
		if m.sessionCursor > 0 {
			m.sessionCursor--
			return m, m.selectSessionAtCursor()
		}
	case "down", "j":
		if m.sessionCursor < len(sessions)-1 {
			m.sessionCursor++
			return m, m.selectSessionAtCursor()
		}
	case "pgdown", "ctrl+d", "J":
		return m, m.scrollMessages(m.rightViewport.Height / 2)
	case "pgup", "ctrl+u", "K":
		return m, m.scrollMessages(-m.rightViewport.Height / 2)
	case "G", "end":
		m.rightViewport.GotoBottom()
		return m, m.checkScroll()
	case "enter", "r":
		if m.sessionCursor < len(sessions) {
			return m.resume(models.SessionRef{ProjectID: projectID, SessionID: sessions[m.sessionCursor].SessionID})
		}
	case "d":
		if m.sessionCursor < len(sessions) {
			ref := models.SessionRef{ProjectID: projectID, SessionID: sessions[m.sessionCursor].SessionID}
			m.confirmDelete = &ref
		}
	case "esc", "backspace":
		m.store.ClearSelection()
		m.currentMode = projectView
		m.sessionCursor = 0
	}
	return m, nil
}

func (m model) handleSearchKey(msg tea.KeyMsg) (model, tea.Cmd) {
	results := m.store.Search().Results()

	switch msg.String() {
	case "esc":
		m.searchInput.Blur()
		m.currentMode = m.previousMode
		m.resize(m.width, m.height)
		return m, nil
	case "tab":
		return m, m.switchSource()
	case "up", "ctrl+p":
		if m.resultCursor > 0 {
			m.resultCursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.resultCursor < len(results)-1 {
			m.resultCursor++
		}
		return m, nil
	case "enter":
		if m.resultCursor < len(results) {
			return m.openResult(results[m.resultCursor])
		}
		return m, m.store.FlushSearch()
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() == before {
		return m, cmd
	}
	m.resultCursor = 0
	return m, tea.Batch(cmd, m.store.SetQuery(m.searchInput.Value()))
}

func (m *model) openSearch() tea.Cmd {
	m.previousMode = m.currentMode
	m.currentMode = searchView
	m.resize(m.width, m.height)
	return m.searchInput.Focus()
}

func (m model) openResult(r models.SearchResult) (model, tea.Cmd) {
	m.searchInput.Blur()
	m.currentMode = sessionView
	m.resize(m.width, m.height)
	m.rightViewport.GotoTop()
	for i, p := range m.store.Projects() {
		if p.ID == r.ProjectID {
			m.projectCursor = i
		}
	}
	cmd := m.store.SelectSession(r.Ref())
	m.sessionCursor = m.indexOfSelected()
	return m, cmd
}

func (m *model) switchSource() tea.Cmd {
	next := m.store.Source().Next()
	cmd := m.store.SwitchSource(next)
	if m.opts.OnSourceChange != nil {
		m.opts.OnSourceChange(next)
	}
	m.projectCursor, m.sessionCursor, m.resultCursor = 0, 0, 0
	m.confirmDelete = nil

	cmds := []tea.Cmd{cmd, m.setStatus(fmt.Sprintf("Switched to %s", next.Title()), false)}
	switch m.currentMode {
	case sessionView:
		m.currentMode = projectView
	case statsView:
		cmds = append(cmds, m.store.LoadStats())
	}
	return tea.Batch(cmds...)
}

func (m model) resume(ref models.SessionRef) (model, tea.Cmd) {
	if m.opts.Foreground {
		dir := m.store.ResumePath(ref)
		if dir == "" {
			return m, m.setStatus("Resume failed: no project directory for this session", true)
		}
		m.result = Result{Resume: ref, Dir: dir}
		return m, tea.Quit
	}
	cmd := m.store.Resume(ref)
	if err := m.store.ResumeErr(); err != nil {
		return m, m.setStatus(fmt.Sprintf("Resume failed: %v", err), true)
	}
	return m, tea.Batch(cmd, m.setStatus("Opening terminal...", false))
}

func (m *model) selectSessionAtCursor() tea.Cmd {
	sessions := m.store.Sessions()
	if m.sessionCursor >= len(sessions) {
		return nil
	}
	m.rightViewport.GotoTop()
	return m.store.SelectSession(models.SessionRef{
		ProjectID: m.store.Selection().ProjectID,
		SessionID: sessions[m.sessionCursor].SessionID,
	})
}

// followSelection keeps the session cursor on the selected session and, when
// a project is open without a session, previews the session at the cursor
func (m *model) followSelection() tea.Cmd {
	if m.currentMode != sessionView {
		return nil
	}
	sel := m.store.Selection()
	switch sel.Kind {
	case orchestrator.SelectionSession:
		if i := m.indexOfSelected(); i >= 0 {
			m.sessionCursor = i
		}
	case orchestrator.SelectionProject:
		if !m.store.SessionsLoading() && len(m.store.Sessions()) > 0 {
			m.clampCursors()
			return m.selectSessionAtCursor()
		}
	}
	return nil
}

func (m model) indexOfSelected() int {
	id := m.store.Selection().SessionID
	for i, s := range m.store.Sessions() {
		if s.SessionID == id {
			return i
		}
	}
	return -1
}

// scrollMessages moves the message pane and requests the next page when the
// bottom comes near
func (m *model) scrollMessages(delta int) tea.Cmd {
	m.rightViewport.SetYOffset(m.rightViewport.YOffset + delta)
	return m.checkScroll()
}

func (m *model) checkScroll() tea.Cmd {
	if m.currentMode != sessionView || !m.ready {
		return nil
	}
	pager := m.store.Messages()
	if !pager.Loaded() || !pager.HasMore() || pager.Loading() {
		return nil
	}
	if !orchestrator.NearBottom(m.rightViewport.YOffset, m.rightViewport.Height,
		m.rightViewport.TotalLineCount(), m.opts.ScrollThreshold) {
		return nil
	}
	return m.store.LoadNextPage()
}

func (m *model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusID++
	m.status = text
	m.statusErr = isErr
	return clearStatusCmd(m.statusID, m.opts.StatusTTL)
}

func (m *model) clampCursors() {
	clamp := func(cursor, n int) int {
		if cursor >= n {
			cursor = n - 1
		}
		if cursor < 0 {
			cursor = 0
		}
		return cursor
	}
	m.projectCursor = clamp(m.projectCursor, len(m.store.Projects()))
	m.sessionCursor = clamp(m.sessionCursor, len(m.store.Sessions()))
	m.resultCursor = clamp(m.resultCursor, len(m.store.Search().Results()))
}

// refresh renders the current view into its viewports
func (m *model) refresh() {
	if !m.ready {
		return
	}
	switch m.currentMode {
	case projectView:
		m.viewport.SetContent(m.renderProjects())
		ensureVisible(&m.viewport, m.projectCursor, 1)
	case sessionView:
		m.leftViewport.SetContent(m.renderSessionsList())
		ensureVisible(&m.leftViewport, m.sessionCursor*linesPerSession+2, linesPerSession)
		m.rightViewport.SetContent(m.renderMessages())
	case searchView:
		m.viewport.SetContent(m.renderSearchResults())
		ensureVisible(&m.viewport, m.resultCursor*linesPerSession+1, linesPerSession)
	case statsView:
		m.viewport.SetContent(m.renderStats())
	}
}

// ensureVisible scrolls vp so that the height lines starting at line show
func ensureVisible(vp *viewport.Model, line, height int) {
	if line < vp.YOffset {
		vp.SetYOffset(line)
	} else if line+height > vp.YOffset+vp.Height {
		vp.SetYOffset(line + height - vp.Height)
	}
}

func (m model) anyLoading() bool {
	return m.store.ProjectsLoading() || m.store.SessionsLoading() ||
		m.store.Messages().Loading() || m.store.Search().Loading() || m.store.StatsLoading()
}

// Run shows the TUI until the user quits
func Run(store *orchestrator.Store, opts Options) (Result, error) {
	p := tea.NewProgram(
		initialModel(store, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if opts.Attach != nil {
		opts.Attach(p.Send)
	}

	finalModel, err := p.Run()
	if err != nil {
		return Result{}, err
	}

	m := finalModel.(model)
	return m.result, nil
}
