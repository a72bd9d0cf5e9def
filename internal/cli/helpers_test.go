package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-factory/internal/storage"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// useTestVault points the package-level staging manager and board at a
// fresh vault under t.TempDir and restores the previous values afterwards.
func useTestVault(t *testing.T) string {
	t.Helper()

	origBase, origStaging, origBoard := BasePath, Staging, Board
	t.Cleanup(func() {
		BasePath, Staging, Board = origBase, origStaging, origBoard
	})

	base := t.TempDir()
	root := filepath.Join(base, "Vault")
	BasePath = base
	Staging = storage.NewStagingManager(root)
	Board = storage.NewBoardStore(filepath.Join(root, "Dashboard.md"), storage.WithClock(func() time.Time { return testNow }))
	return root
}

// initTestVault creates the staging directories and an empty board.
func initTestVault(t *testing.T) string {
	t.Helper()
	root := useTestVault(t)
	if err := Staging.Ensure(); err != nil {
		t.Fatalf("creating staging directories: %v", err)
	}
	if err := Board.Init(); err != nil {
		t.Fatalf("creating board: %v", err)
	}
	return root
}

func stageFile(t *testing.T, stage models.Stage, name, content string) {
	t.Helper()
	if err := os.WriteFile(Staging.Path(stage, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func appendRow(t *testing.T, name string, status models.TaskStatus) models.Task {
	t.Helper()
	row, err := Board.AppendRow(models.Task{Name: name, Status: models.StatusPending, Date: "2026-03-14", Time: "09:00:00", Link: "Needs_Action/" + name + ".md"})
	if err != nil {
		t.Fatalf("appending row: %v", err)
	}
	if status != models.StatusPending {
		row, err = Board.Transition(name, status, "2026-03-14", "09:05:00", "")
		if err != nil {
			t.Fatalf("transitioning row: %v", err)
		}
	}
	return row
}

// runCmd runs cmd's RunE with its output captured.
func runCmd(t *testing.T, cmd *cobra.Command) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	defer cmd.SetOut(nil)
	err := cmd.RunE(cmd, []string{})
	return buf.String(), err
}
