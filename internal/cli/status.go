package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

var (
	statusFilter string
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status board counters and task rows",
	Long: `Print the counters and task rows recorded on Dashboard.md.

Optionally show only rows in one state using --filter (Pending, Completed or
Error). A warning is printed when the counters disagree with the rows.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Board == nil {
			return fmt.Errorf("status board not initialized")
		}
		if statusFilter != "" && !models.TaskStatus(statusFilter).Valid() {
			return fmt.Errorf("invalid --filter %q: must be one of Pending, Completed, Error", statusFilter)
		}

		b, err := Board.Snapshot()
		if err != nil {
			return fmt.Errorf("reading status board: %w", err)
		}

		rows := filterRows(b.Tasks, models.TaskStatus(statusFilter))
		out := cmd.OutOrStdout()

		if statusJSON {
			data, err := json.MarshalIndent(struct {
				Counters    models.Counters `json:"counters"`
				LastUpdated string          `json:"last_updated"`
				Tasks       []models.Task   `json:"tasks"`
			}{b.Counters, b.LastUpdated, rows}, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting board as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		printBoard(out, b, rows)
		return nil
	},
}

func filterRows(tasks []models.Task, status models.TaskStatus) []models.Task {
	if status == "" {
		return tasks
	}
	var out []models.Task
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func printBoard(out io.Writer, b *models.Board, rows []models.Task) {
	fmt.Fprintln(out, headerStyle.Render("Status board"))
	fmt.Fprintf(out, "  %s\n", renderCounters(b.Counters))
	fmt.Fprintf(out, "  Last updated: %s\n", b.LastUpdated)
	if b.Counters != models.CountRows(b.Tasks) {
		fmt.Fprintf(out, "  %s\n", warnStyle.Render("Counters disagree with the rows; run factory reconcile."))
	}
	fmt.Fprintln(out)

	if len(rows) == 0 {
		fmt.Fprintln(out, "  No tasks found.")
		return
	}

	fmt.Fprintf(out, "  %-4s %-28s %-10s %-10s %-8s %s\n", "#", "TASK", "STATUS", "DATE", "TIME", "LINK")
	for _, t := range rows {
		// Pad before styling so ANSI codes do not skew the columns.
		status := styleForStatus(t.Status).Render(fmt.Sprintf("%-10s", t.Status))
		fmt.Fprintf(out, "  %-4d %-28s %s %-10s %-8s %s\n", t.Seq, t.Name, status, t.Date, t.Time, t.Link)
	}
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "filter", "", "Only show rows with this status (Pending, Completed, Error)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output the board as JSON")
	rootCmd.AddCommand(statusCmd)
}
