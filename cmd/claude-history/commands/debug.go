package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newDebugCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debug-session <project> <session-id>",
		Short: "Debug a specific session to see raw data",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ref, err := a.findSession(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Debugging session: %s\n", ref.SessionID)
			fmt.Fprintln(out, "==========================================")

			info, err := a.provider.DebugSession(cmd.Context(), a.store.Source(), ref)
			if err != nil {
				return fmt.Errorf("failed to debug session: %w", err)
			}

			fmt.Fprintf(out, "File: %s\n", info.File)
			if info.Summary != "" {
				fmt.Fprintf(out, "Summary: %s\n", info.Summary)
			}
			fmt.Fprintf(out, "Visible messages: %d\n", info.MessageCount)

			types := make([]string, 0, len(info.RecordTypes))
			for t := range info.RecordTypes {
				types = append(types, t)
			}
			sort.Strings(types)
			fmt.Fprintln(out, "Record types:")
			for _, t := range types {
				fmt.Fprintf(out, "  %-20s %d\n", t, info.RecordTypes[t])
			}

			if len(info.Messages) == 0 {
				fmt.Fprintln(out, "No messages found for this session")
				return nil
			}
			fmt.Fprintf(out, "Found %d messages:\n", len(info.Messages))
			for i, msg := range info.Messages {
				fmt.Fprintf(out, "\n--- Message %d ---\n%s\n", i+1, msg)
			}
			return nil
		}),
	}
}
