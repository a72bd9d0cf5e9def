package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-factory/internal/observability"
)

var alertsNotify bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against the status board and the event log and
display any triggered alerts.

Alerts check for tasks pending too long, Error rows, a large backlog,
counters that disagree with the rows and repeated generation failures. With
--notify the alerts are also posted to the configured Slack webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized")
		}
		if alertsNotify && Notifier == nil {
			return fmt.Errorf("no Slack webhook configured (set alerts.slack_webhook or SLACK_WEBHOOK_URL)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Fprintf(out, "  %s %s\n", styleForSeverity(string(alert.Severity)).Render("["+severity+"]"), alert.Message)
			fmt.Fprintf(out, "         %s, triggered at %s\n\n", alert.Condition, alert.TriggeredAt.Format("2006-01-02 15:04"))
		}

		if alertsNotify {
			digest := observability.AlertDigest{Alerts: alerts}
			if Board != nil {
				if b, err := Board.Snapshot(); err == nil {
					digest.Board = b
				}
			}
			if err := Notifier.Notify(digest); err != nil {
				return fmt.Errorf("sending alerts: %w", err)
			}
			fmt.Fprintln(out, "Alerts sent to Slack.")
		}
		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post active alerts to the Slack webhook")
	rootCmd.AddCommand(alertsCmd)
}
