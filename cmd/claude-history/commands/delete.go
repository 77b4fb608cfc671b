package commands

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/strrl/claude-history/internal/orchestrator"
)

func newDeleteCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <project> <session-id>",
		Short: "Delete a session transcript",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		ref, err := a.findSession(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		if !yes {
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete session %s?", ref.SessionID)).
				Description("The transcript file is removed from disk.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return fmt.Errorf("confirmation failed: %w", err)
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}
		}

		if err := orchestrator.Drive(cmd.Context(), a.store, a.store.DeleteSession(ref)); err != nil {
			return err
		}
		if err := a.store.DeleteErr(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", ref.SessionID)
		return nil
	})
	return cmd
}
