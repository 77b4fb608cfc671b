package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/claude-history/internal/config"
	"github.com/strrl/claude-history/internal/orchestrator"
)

func newSearchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every session of the source for text",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Int("limit", orchestrator.DefaultMaxResults, "maximum number of results")
	_ = a.v.BindPFlag(config.KeySearchMax, cmd.Flags().Lookup("limit"))

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		a.store.SetQuery(args[0])
		if err := orchestrator.Drive(ctx, a.store, a.store.FlushSearch()); err != nil {
			return err
		}

		search := a.store.Search()
		if err := search.Err(); err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if search.NoResults() || search.Query() == "" {
			fmt.Fprintf(out, "No results for %q\n", args[0])
			return nil
		}

		fmt.Fprintf(out, "%d results for %q:\n", len(search.Results()), search.ResultsQuery())
		for i, r := range search.Results() {
			fmt.Fprintf(out, "\n%d. %s / %s [%s] %s\n", i+1, r.ProjectName, r.SessionID, r.Role,
				r.Timestamp.Local().Format("2006-01-02 15:04"))
			if r.FirstPrompt != "" {
				fmt.Fprintf(out, "   Prompt: %s\n", r.FirstPrompt)
			}
			fmt.Fprintf(out, "   ...%s...\n", r.MatchedText)
		}
		return nil
	})
	return cmd
}
