package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strrl/claude-history/internal/orchestrator"
)

func newShowCommand(a *app) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "show [project] [session-id]",
		Short: "Show projects, sessions, or messages without TUI",
		Long: `Show projects, sessions, or messages in a non-interactive format.
Without arguments: lists all projects
With project name: lists all sessions in that project
With project name and session ID: shows one page of that session's messages`,
		Args: cobra.MaximumNArgs(2),
	}
	cmd.Flags().IntVar(&page, "page", 0, "page of messages to show, starting at 0")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return a.showProjects(cmd.Context(), out)
		case 1:
			return a.showSessions(cmd.Context(), out, args[0])
		default:
			return a.showMessages(cmd.Context(), out, args[0], args[1], page)
		}
	})
	return cmd
}

func (a *app) showProjects(ctx context.Context, out io.Writer) error {
	if err := orchestrator.Drive(ctx, a.store, a.store.LoadProjects()); err != nil {
		return err
	}
	if err := a.store.ProjectsErr(); err != nil {
		return fmt.Errorf("failed to fetch projects: %w", err)
	}

	projects := a.store.Projects()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found")
		return nil
	}

	fmt.Fprintln(out, "Projects:")
	fmt.Fprintln(out, "=========")
	for i, project := range projects {
		fmt.Fprintf(out, "%d. %s\n", i+1, project.ShortName)
		fmt.Fprintf(out, "   Path: %s\n", project.DisplayPath)
		fmt.Fprintf(out, "   ID: %s\n", project.ID)
		fmt.Fprintf(out, "   Sessions: %d\n", project.SessionCount)
		fmt.Fprintf(out, "   Last Activity: %s\n", project.LastModified.Format("2006-01-02 15:04"))
		fmt.Fprintln(out)
	}
	return nil
}

func (a *app) showSessions(ctx context.Context, out io.Writer, projectName string) error {
	project, err := a.openProject(ctx, projectName)
	if err != nil {
		return err
	}

	projectSessions := a.store.Sessions()
	if len(projectSessions) == 0 {
		fmt.Fprintf(out, "No sessions found for project '%s'\n", projectName)
		return nil
	}

	fmt.Fprintf(out, "Sessions for project '%s':\n", project.ShortName)
	fmt.Fprintf(out, "Path: %s\n", project.DisplayPath)
	fmt.Fprintln(out, "===================================")
	for i, session := range projectSessions {
		fmt.Fprintf(out, "%d. Session ID: %s\n", i+1, session.SessionID)
		fmt.Fprintf(out, "   Last Activity: %s\n", session.Modified.Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "   Messages: %d\n", session.MessageCount)
		if session.GitBranch != "" {
			fmt.Fprintf(out, "   Branch: %s\n", session.GitBranch)
		}
		if session.FirstPrompt != "" {
			fmt.Fprintf(out, "   First Prompt: %s\n", session.FirstPrompt)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func (a *app) showMessages(ctx context.Context, out io.Writer, projectName, sessionID string, page int) error {
	if page < 0 {
		return fmt.Errorf("page must not be negative, got %d", page)
	}
	ref, err := a.findSession(ctx, projectName, sessionID)
	if err != nil {
		return err
	}

	pager := a.store.Messages()
	if err := orchestrator.Drive(ctx, a.store, a.store.SelectSession(ref)); err != nil {
		return err
	}
	for pager.Page() < page && pager.HasMore() && pager.Err() == nil {
		if err := orchestrator.Drive(ctx, a.store, a.store.LoadNextPage()); err != nil {
			return err
		}
	}
	if err := pager.Err(); err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	items := pager.Items()
	start := page * pager.PageSize()
	if start >= len(items) {
		fmt.Fprintf(out, "No messages on page %d (session has %d messages)\n", page, pager.Total())
		return nil
	}
	end := min(start+pager.PageSize(), len(items))

	fmt.Fprintf(out, "Messages %d-%d of %d for session '%s':\n", start+1, end, pager.Total(), sessionID)
	fmt.Fprintln(out, "================================================")
	for i := start; i < end; i++ {
		msg := items[i]
		fmt.Fprintf(out, "\n%d. [%s] %s\n", i+1, msg.Role, msg.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintln(out, indent(msg.PlainText(), "   "))
	}
	if pager.HasMore() || end < len(items) {
		fmt.Fprintf(out, "\n(more with --page %d)\n", page+1)
	}
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
