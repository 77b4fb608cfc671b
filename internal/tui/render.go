package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/pkg/models"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	matchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220"))

	roleStyles = map[models.Role]lipgloss.Style{
		models.RoleUser:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		models.RoleAssistant: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		models.RoleTool:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	}
)

// maxToolLines caps how much tool output is shown per block
const maxToolLines = 6

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	switch m.currentMode {
	case sessionView:
		return fmt.Sprintf("%s\n%s\n%s", header, m.renderSplitView(), footer)
	case searchView:
		return fmt.Sprintf("%s\n%s\n\n%s\n%s", header, m.searchInput.View(), m.viewport.View(), footer)
	default:
		if m.currentMode == projectView && m.store.ProjectsLoading() && len(m.store.Projects()) == 0 {
			m.loading.SetMessage(fmt.Sprintf("Loading %s projects...", m.store.Source().Title()))
			return fmt.Sprintf("%s\n%s\n%s", header, LoadingOverlay(m.width, m.viewport.Height, m.loading), footer)
		}
		return fmt.Sprintf("%s\n%s\n%s", header, m.viewport.View(), footer)
	}
}

func (m model) renderSplitView() string {
	leftStyle := lipgloss.NewStyle().
		Width(m.leftViewport.Width).
		Height(m.leftViewport.Height)

	rightStyle := lipgloss.NewStyle().
		Width(m.rightViewport.Width).
		Height(m.rightViewport.Height)

	dividerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("238")).
		Height(m.leftViewport.Height)

	divider := strings.TrimSuffix(strings.Repeat("│\n", max(m.leftViewport.Height, 1)), "\n")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftStyle.Render(m.leftViewport.View()),
		dividerStyle.Render(divider),
		rightStyle.Render(m.rightViewport.View()),
	)
}

func (m model) renderHeader() string {
	source := m.store.Source().Title()
	title := fmt.Sprintf("%s History - Projects", source)
	switch m.currentMode {
	case sessionView:
		if p, ok := m.store.Project(m.store.Selection().ProjectID); ok {
			title = fmt.Sprintf("%s History - %s", source, p.ShortName)
		}
	case searchView:
		title = fmt.Sprintf("%s History - Search", source)
	case statsView:
		title = fmt.Sprintf("%s History - Usage", source)
	}

	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63"))

	out := style.Render(title)
	if m.anyLoading() {
		m.loading.SetMessage("")
		out += " " + m.loading.View()
	}
	return out
}

func (m model) renderFooter() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	if m.confirmDelete != nil {
		return errorStyle.Render(fmt.Sprintf("Delete session %s? (y/n)", m.confirmDelete.SessionID))
	}
	if m.status != "" {
		if m.statusErr {
			return errorStyle.Render(m.status)
		}
		return mutedStyle.Render(m.status)
	}

	var info string
	switch m.currentMode {
	case projectView:
		info = "↑/↓: navigate • enter: open • /: search • s: stats • tab: source • q: quit"
	case sessionView:
		info = "↑/↓: session • pgup/pgdn: scroll • r: resume • d: delete • /: search • tab: source • esc: back • q: quit"
	case searchView:
		info = "type to search • ↑/↓: select • enter: open • tab: source • esc: back"
	case statsView:
		info = "r: refresh • tab: source • esc: back • q: quit"
	}
	return style.Render(info)
}

func (m model) renderProjects() string {
	if err := m.store.ProjectsErr(); err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", err))
	}

	projects := m.store.Projects()
	if len(projects) == 0 && !m.store.ProjectsLoading() {
		return dimStyle.Render(fmt.Sprintf("No %s projects found", m.store.Source().Title()))
	}

	var s strings.Builder
	for i, project := range projects {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.projectCursor {
			cursor = "> "
			style = selectedStyle
		}

		line := fmt.Sprintf("%s%s (%d sessions) - %s",
			cursor,
			project.DisplayPath,
			project.SessionCount,
			project.LastModified.Format("2006-01-02 15:04"))

		s.WriteString(style.Render(line) + "\n")
	}
	return s.String()
}

func (m model) renderSessionsList() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Sessions") + "\n")
	s.WriteString(strings.Repeat("─", max(m.leftViewport.Width-2, 10)) + "\n")

	if err := m.store.SessionsErr(); err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		return s.String()
	}
	sessions := m.store.Sessions()
	if len(sessions) == 0 {
		if m.store.SessionsLoading() {
			s.WriteString(dimStyle.Render("Loading sessions..."))
		} else {
			s.WriteString(dimStyle.Render("No sessions found"))
		}
		return s.String()
	}

	promptWidth := max(m.leftViewport.Width-4, 10)
	for i, session := range sessions {
		cursor := "  "
		dateStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		promptStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
		if i == m.sessionCursor {
			cursor = "> "
			dateStyle = selectedStyle
			promptStyle = mutedStyle
		}

		line := fmt.Sprintf("%s%s  %d msgs", cursor, session.Modified.Format("01-02 15:04"), session.MessageCount)
		if session.GitBranch != "" {
			line += "  " + session.GitBranch
		}
		s.WriteString(dateStyle.Render(line) + "\n")

		prompt := session.FirstPrompt
		if prompt == "" {
			prompt = session.SessionID
		}
		s.WriteString(promptStyle.Render("  "+truncate(prompt, promptWidth)) + "\n")

		if i < len(sessions)-1 {
			s.WriteString("\n")
		}
	}
	return s.String()
}

func (m model) renderMessages() string {
	var s strings.Builder
	pager := m.store.Messages()

	title := "Messages"
	if pager.Loaded() {
		title = fmt.Sprintf("Messages (%d/%d)", len(pager.Items()), pager.Total())
	}
	s.WriteString(headerStyle.Render(title) + "\n")
	s.WriteString(strings.Repeat("─", max(m.rightViewport.Width-2, 10)) + "\n\n")

	if m.store.Selection().Kind != orchestrator.SelectionSession {
		s.WriteString(dimStyle.Render("Select a session"))
		return s.String()
	}

	items := pager.Items()
	if len(items) == 0 {
		switch {
		case pager.Loading():
			s.WriteString(dimStyle.Render("Loading messages..."))
		case pager.Err() != nil:
			s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", pager.Err())))
		default:
			s.WriteString(dimStyle.Render("No messages found"))
		}
		return s.String()
	}

	wrapWidth := max(m.rightViewport.Width-5, 20)
	for i, msg := range items {
		s.WriteString(renderMessage(msg, wrapWidth))
		if i < len(items)-1 {
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	switch {
	case pager.Loading():
		s.WriteString(dimStyle.Render("Loading more..."))
	case pager.Err() != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load more: %v", pager.Err())))
	case pager.HasMore():
		s.WriteString(dimStyle.Render("↓ scroll for more"))
	default:
		s.WriteString(dimStyle.Render("(end of session)"))
	}
	return s.String()
}

func renderMessage(msg models.Message, width int) string {
	var s strings.Builder

	style, ok := roleStyles[msg.Role]
	if !ok {
		style = mutedStyle
	}
	head := style.Render(roleTitle(msg.Role))
	if !msg.Timestamp.IsZero() {
		head += " " + mutedStyle.Render(msg.Timestamp.Local().Format("01-02 15:04"))
	}
	s.WriteString(head + "\n")

	for _, block := range msg.Content {
		var lines []string
		blockStyle := textStyle
		switch block.Kind {
		case models.BlockText:
			lines = wrapText(block.Text, width)
		case models.BlockThinking:
			blockStyle = dimStyle
			lines = wrapText("💭 "+block.Text, width)
		case models.BlockToolUse:
			blockStyle = mutedStyle
			lines = wrapText(fmt.Sprintf("🔧 %s %s", block.ToolName, block.Input), width)
			lines = capLines(lines, 2)
		case models.BlockToolResult, models.BlockFunctionCallOutput:
			blockStyle = mutedStyle
			if block.IsError {
				blockStyle = errorStyle
			}
			lines = capLines(wrapText("↩ "+block.Text, width), maxToolLines)
		}
		for _, line := range lines {
			s.WriteString("  " + blockStyle.Render(line) + "\n")
		}
	}
	return s.String()
}

func roleTitle(role models.Role) string {
	switch role {
	case models.RoleUser:
		return "User"
	case models.RoleAssistant:
		return "Assistant"
	case models.RoleTool:
		return "Tool"
	}
	return string(role)
}

func (m model) renderSearchResults() string {
	search := m.store.Search()
	var s strings.Builder

	switch {
	case search.Query() == "":
		s.WriteString(dimStyle.Render("Type to search across all sessions"))
		return s.String()
	case search.Err() != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("Search failed: %v", search.Err())) + "\n\n")
	case search.NoResults():
		s.WriteString(dimStyle.Render(fmt.Sprintf("No results for %q", search.Query())))
		return s.String()
	case search.Loading() && len(search.Results()) == 0:
		s.WriteString(dimStyle.Render("Searching..."))
		return s.String()
	default:
		s.WriteString(mutedStyle.Render(fmt.Sprintf("%d results", len(search.Results()))) + "\n")
	}

	width := max(m.viewport.Width-4, 20)
	for i, r := range search.Results() {
		cursor := "  "
		style := textStyle
		if i == m.resultCursor {
			cursor = "> "
			style = selectedStyle
		}
		title := fmt.Sprintf("%s%s • %s • %s", cursor, r.ProjectName,
			truncate(firstNonEmpty(r.FirstPrompt, r.SessionID), width/2), r.Timestamp.Local().Format("2006-01-02 15:04"))
		s.WriteString(style.Render(title) + "\n")
		s.WriteString("  " + highlight(truncate(strings.Join(strings.Fields(r.MatchedText), " "), width), search.ResultsQuery()) + "\n\n")
	}
	return s.String()
}

// highlight marks the first case-insensitive occurrence of query in text
func highlight(text, query string) string {
	if query == "" {
		return mutedStyle.Render(text)
	}
	i := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if i < 0 || len(strings.ToLower(text)) != len(text) {
		return mutedStyle.Render(text)
	}
	end := i + len(query)
	return mutedStyle.Render(text[:i]) + matchStyle.Render(text[i:end]) + mutedStyle.Render(text[end:])
}

func (m model) renderStats() string {
	var s strings.Builder

	summary, ok := m.store.Stats()
	if err := m.store.StatsErr(); err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", err)) + "\n\n")
	}
	if !ok {
		if m.store.StatsLoading() {
			s.WriteString(dimStyle.Render("Computing usage..."))
		}
		return s.String()
	}

	s.WriteString(headerStyle.Render("Totals") + "\n")
	fmt.Fprintf(&s, "  Tokens:   %s (input %s, output %s)\n",
		formatTokens(summary.TotalTokens), formatTokens(summary.InputTokens), formatTokens(summary.OutputTokens))
	fmt.Fprintf(&s, "  Sessions: %d\n", summary.SessionCount)
	fmt.Fprintf(&s, "  Messages: %d\n\n", summary.MessageCount)

	barWidth := max(min(m.viewport.Width-40, 40), 10)

	s.WriteString(headerStyle.Render("By model") + "\n")
	modelNames := make([]string, 0, len(summary.TokensByModel))
	for name := range summary.TokensByModel {
		modelNames = append(modelNames, name)
	}
	sort.Slice(modelNames, func(i, j int) bool {
		return summary.TokensByModel[modelNames[i]] > summary.TokensByModel[modelNames[j]]
	})
	for _, name := range modelNames {
		tokens := summary.TokensByModel[name]
		fmt.Fprintf(&s, "  %-24s %s %s\n", truncate(name, 24),
			renderProgressBar(percent(tokens, summary.TotalTokens), barWidth), formatTokens(tokens))
	}
	if len(modelNames) == 0 {
		s.WriteString(dimStyle.Render("  no usage recorded") + "\n")
	}

	s.WriteString("\n" + headerStyle.Render("Daily") + "\n")
	daily := summary.DailyTokens
	if len(daily) > 14 {
		daily = daily[len(daily)-14:]
	}
	var peak int64
	for _, d := range daily {
		peak = max(peak, d.Tokens)
	}
	for _, d := range daily {
		fmt.Fprintf(&s, "  %s %s %s\n", d.Date, renderProgressBar(percent(d.Tokens, peak), barWidth), formatTokens(d.Tokens))
	}
	return s.String()
}

func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

// formatTokens abbreviates large counts, e.g. 1.2M or 34.5K
func formatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// wrapText wraps each line of text to fit within width
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		currentLine := words[0]
		for _, word := range words[1:] {
			if lipgloss.Width(currentLine)+1+lipgloss.Width(word) > width {
				lines = append(lines, currentLine)
				currentLine = word
			} else {
				currentLine += " " + word
			}
		}
		lines = append(lines, currentLine)
	}
	return lines
}

func capLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return append(lines[:n:n], fmt.Sprintf("… %d more lines", len(lines)-n))
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
