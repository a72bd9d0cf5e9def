package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute the board counters from its rows",
	Long: `Recompute Total, Completed, Pending and Errors from the task rows on
Dashboard.md and write them back. Use it after editing the board by hand or
when "factory status" reports that the counters disagree with the rows.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Board == nil {
			return fmt.Errorf("status board not initialized")
		}

		before, err := Board.Snapshot()
		if err != nil {
			return fmt.Errorf("reading status board: %w", err)
		}
		after, err := Board.Reconcile()
		if err != nil {
			return fmt.Errorf("reconciling counters: %w", err)
		}

		out := cmd.OutOrStdout()
		if before.Counters == after {
			fmt.Fprintln(out, "Counters already match the rows.")
			return nil
		}
		fmt.Fprintf(out, "Counters corrected:\n  was %s\n  now %s\n", renderCounters(before.Counters), renderCounters(after))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
