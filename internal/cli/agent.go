package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-factory/internal/core"
)

var (
	agentOnce     bool
	agentInterval time.Duration
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Process staged tasks from Needs_Action",
	Long: `Run the triage agent. Each cycle picks the oldest staged document whose
board row is still Pending, classifies it, appends a generated response (or
fallback text when generation is unavailable), moves it to Done and marks the
row Completed.

With --once a single cycle runs; the command exits non-zero if that task
failed and zero when there was nothing to do.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewAgent == nil {
			return fmt.Errorf("triage agent not initialized")
		}
		agent := NewAgent(agentInterval)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !agentOnce {
			return agent.Run(ctx)
		}

		if err := core.CheckVault(Staging, Board); err != nil {
			return err
		}
		res, err := agent.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("running agent cycle: %w", err)
		}
		return reportCycle(cmd.OutOrStdout(), res)
	},
}

// reportCycle prints one cycle's result and turns a task failure into an
// error so the process exits non-zero.
func reportCycle(out io.Writer, res *core.CycleResult) error {
	switch res.Outcome {
	case core.CycleIdle:
		fmt.Fprintln(out, "No tasks to process.")
		return nil
	case core.CycleCompleted:
		line := fmt.Sprintf("%s %s as %s", okStyle.Render("completed"), res.Task, res.Label)
		if res.Fallback {
			line += warnStyle.Render(" (fallback text)")
		}
		fmt.Fprintln(out, line)
		return nil
	case core.CycleReadFailed:
		return fmt.Errorf("reading %s: %w", res.File, res.Err)
	default:
		return fmt.Errorf("task %s failed: %w", res.Task, res.Err)
	}
}

func init() {
	agentCmd.Flags().BoolVar(&agentOnce, "once", false, "Process at most one task and exit")
	agentCmd.Flags().DurationVar(&agentInterval, "interval", 0, "Pause between cycles (default from agent.interval)")
	rootCmd.AddCommand(agentCmd)
}
