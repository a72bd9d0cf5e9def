package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/agent-factory/internal/core"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

func useTestWatcher(t *testing.T) {
	t.Helper()
	orig := Watcher
	t.Cleanup(func() { Watcher = orig })
	Watcher = core.NewIntakeWatcher(Staging, Board, nil, nil, nil, core.WatcherOptions{Now: func() time.Time { return testNow }})
}

func TestWatchCmd_NilWatcher(t *testing.T) {
	orig := Watcher
	defer func() { Watcher = orig }()
	Watcher = nil

	_, err := runCmd(t, watchCmd)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWatchCmd_OnceStagesInbox(t *testing.T) {
	initTestVault(t)
	useTestWatcher(t)
	stageFile(t, models.StageInbox, "report.md", "What is the capital of France?")
	stageFile(t, models.StageInbox, "scan.pdf", "%PDF")

	origOnce := watchOnce
	defer func() { watchOnce = origOnce }()
	watchOnce = true

	out, err := runCmd(t, watchCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "staged report.md (row 1)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !Staging.Exists(models.StageInbox, "scan.pdf") {
		t.Error("expected unsupported scan.pdf to stay in the Inbox")
	}
	if !Staging.Exists(models.StageNeedsAction, "report.md") || Staging.Exists(models.StageInbox, "report.md") {
		t.Error("expected report.md to move from Inbox to Needs_Action")
	}

	b, err := Board.Snapshot()
	if err != nil {
		t.Fatalf("reading board: %v", err)
	}
	if b.Counters != (models.Counters{Total: 1, Pending: 1}) {
		t.Errorf("Counters = %+v", b.Counters)
	}
}

func TestWatchCmd_OnceMissingVault(t *testing.T) {
	useTestVault(t)
	useTestWatcher(t)

	origOnce := watchOnce
	defer func() { watchOnce = origOnce }()
	watchOnce = true

	_, err := runCmd(t, watchCmd)
	if !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPrintIntakeResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	printIntakeResults(&buf, nil)
	if !strings.Contains(buf.String(), "Inbox is empty.") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestPrintIntakeResults_SkipsIgnored(t *testing.T) {
	var buf bytes.Buffer
	printIntakeResults(&buf, []core.IntakeResult{
		{File: ".DS_Store", Outcome: core.IntakeIgnored},
		{File: "report.md", Outcome: core.IntakeConflict, Err: errors.New("task report already exists")},
	})
	out := buf.String()
	if strings.Contains(out, ".DS_Store") {
		t.Errorf("ignored entry printed:\n%s", out)
	}
	if !strings.Contains(out, "conflict report.md: task report already exists") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
