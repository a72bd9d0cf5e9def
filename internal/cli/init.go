package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-factory/internal/core"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

const sampleConfig = `# Agent Factory configuration. Environment variables (GROQ_API_KEY,
# GROQ_MODEL, MAX_TOKENS, TEMPERATURE, GROQ_BASE_URL) and a .env file
# beside this one take precedence over the values below.
vault:
  root: Vault
  board: Dashboard.md
watcher:
  debounce: 100ms
  rescan_interval: 30s
agent:
  interval: 5s
  max_read_attempts: 3
generation:
  model: llama-3.3-70b-versatile
  max_tokens: 2048
  temperature: 0.7
  timeout: 60s
alerts:
  pending_hours: 24
  max_pending: 10
log:
  level: info
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the vault directories, status board and configuration file",
	Long: `Create the Inbox, Needs_Action and Done directories, an empty Dashboard.md
status board and a commented .factoryconfig in the current base path.

Safe to run on an existing vault: directories, the board and the
configuration file that already exist are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Staging == nil || Board == nil {
			return fmt.Errorf("vault not initialized")
		}
		out := cmd.OutOrStdout()

		if err := Staging.Ensure(); err != nil {
			return fmt.Errorf("creating staging directories: %w", err)
		}
		for _, stage := range models.Stages {
			fmt.Fprintf(out, "  %s\n", Staging.Path(stage, ""))
		}

		if err := Board.Init(); err != nil {
			return fmt.Errorf("creating status board: %w", err)
		}
		fmt.Fprintf(out, "  %s\n", Board.Path())

		cfgPath := filepath.Join(BasePath, core.ConfigFileName+".yaml")
		written, err := writeIfMissing(cfgPath, sampleConfig)
		if err != nil {
			return fmt.Errorf("writing configuration: %w", err)
		}
		if written {
			fmt.Fprintf(out, "  %s\n", cfgPath)
		}

		fmt.Fprintf(out, "\nVault ready at %s\n", Staging.Root())
		return nil
	},
}

// writeIfMissing creates path with content unless a file is already there.
func writeIfMissing(path, content string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}

func init() {
	rootCmd.AddCommand(initCmd)
}
