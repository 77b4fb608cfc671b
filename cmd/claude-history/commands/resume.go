package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/internal/sessions"
)

func newResumeCommand(a *app) *cobra.Command {
	var inTerminal bool

	cmd := &cobra.Command{
		Use:   "resume <project> <session-id>",
		Short: "Resume a session in its project directory",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().BoolVar(&inTerminal, "new-terminal", false, "open the session in a new terminal window")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		ref, err := a.findSession(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		if inTerminal {
			a.provider.SetLauncher(sessions.NewTerminalLauncher(a.cfg.ResumeTerminal))
		} else {
			a.provider.SetLauncher(sessions.NewForegroundLauncher())
		}

		if err := orchestrator.Drive(cmd.Context(), a.store, a.store.Resume(ref)); err != nil {
			return err
		}
		if err := a.store.ResumeErr(); err != nil {
			return err
		}
		if inTerminal {
			fmt.Fprintf(cmd.OutOrStdout(), "Opened session %s in %s\n", ref.SessionID, a.store.ResumePath(ref))
		}
		return nil
	})
	return cmd
}
