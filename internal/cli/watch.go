package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-factory/internal/core"
)

var watchOnce bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stage new Inbox documents into Needs_Action",
	Long: `Watch the vault's Inbox. Every supported document (.md, .txt, .docx) that
appears is moved into Needs_Action and recorded on the status board as a
Pending task. Documents already waiting in the Inbox are staged first, oldest
first.

With --once the Inbox is swept a single time and the command exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Watcher == nil {
			return fmt.Errorf("intake watcher not initialized")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !watchOnce {
			return Watcher.Run(ctx)
		}

		if err := core.CheckVault(Staging, Board); err != nil {
			return err
		}
		results, err := Watcher.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweeping inbox: %w", err)
		}
		printIntakeResults(cmd.OutOrStdout(), results)
		return nil
	},
}

func printIntakeResults(out io.Writer, results []core.IntakeResult) {
	if len(results) == 0 {
		fmt.Fprintln(out, "Inbox is empty.")
		return
	}
	for _, r := range results {
		switch r.Outcome {
		case core.IntakeAccepted:
			fmt.Fprintf(out, "  %s %s (row %d)\n", okStyle.Render("staged"), r.File, r.Task.Seq)
		case core.IntakeIgnored:
		default:
			line := fmt.Sprintf("  %s %s", r.Outcome, r.File)
			if r.Err != nil {
				line += ": " + r.Err.Error()
			}
			fmt.Fprintln(out, warnStyle.Render(line))
		}
	}
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Sweep the Inbox once and exit")
	rootCmd.AddCommand(watchCmd)
}
