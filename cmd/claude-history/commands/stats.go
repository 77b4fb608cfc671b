package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/strrl/claude-history/internal/orchestrator"
)

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show token usage of the source",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if err := orchestrator.Drive(cmd.Context(), a.store, a.store.LoadStats()); err != nil {
				return err
			}
			if err := a.store.StatsErr(); err != nil {
				return fmt.Errorf("failed to compute stats: %w", err)
			}
			summary, ok := a.store.Stats()
			if !ok {
				return fmt.Errorf("no stats for %s", a.store.Source())
			}

			fmt.Fprintf(out, "%s usage\n", a.store.Source().Title())
			fmt.Fprintln(out, "===========")
			fmt.Fprintf(out, "Total tokens:  %d\n", summary.TotalTokens)
			fmt.Fprintf(out, "Input tokens:  %d\n", summary.InputTokens)
			fmt.Fprintf(out, "Output tokens: %d\n", summary.OutputTokens)
			fmt.Fprintf(out, "Sessions:      %d\n", summary.SessionCount)
			fmt.Fprintf(out, "Messages:      %d\n", summary.MessageCount)

			names := make([]string, 0, len(summary.TokensByModel))
			for name := range summary.TokensByModel {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(out, "\nBy model:")
			for _, name := range names {
				fmt.Fprintf(out, "  %-28s %d\n", name, summary.TokensByModel[name])
			}

			fmt.Fprintln(out, "\nDaily:")
			for _, d := range summary.DailyTokens {
				fmt.Fprintf(out, "  %s  %d\n", d.Date, d.Tokens)
			}
			return nil
		}),
	}
}
