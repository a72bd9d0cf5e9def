package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

func TestStatusCmd_NilBoard(t *testing.T) {
	orig := Board
	defer func() { Board = orig }()
	Board = nil

	_, err := runCmd(t, statusCmd)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatusCmd_MissingBoard(t *testing.T) {
	useTestVault(t)

	_, err := runCmd(t, statusCmd)
	if err == nil || !strings.Contains(err.Error(), "reading status board") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatusCmd_PrintsRows(t *testing.T) {
	initTestVault(t)
	appendRow(t, "report", models.StatusCompleted)
	appendRow(t, "summary", models.StatusPending)

	out, err := runCmd(t, statusCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Total 2", "Completed 1", "Pending 1", "report", "summary", "Needs_Action/summary.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "disagree") {
		t.Errorf("unexpected drift warning:\n%s", out)
	}
}

func TestStatusCmd_Filter(t *testing.T) {
	initTestVault(t)
	appendRow(t, "report", models.StatusCompleted)
	appendRow(t, "summary", models.StatusPending)

	origFilter := statusFilter
	defer func() { statusFilter = origFilter }()
	statusFilter = "Pending"

	out, err := runCmd(t, statusCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "report") || !strings.Contains(out, "summary") {
		t.Errorf("filter not applied:\n%s", out)
	}
}

func TestStatusCmd_InvalidFilter(t *testing.T) {
	initTestVault(t)

	origFilter := statusFilter
	defer func() { statusFilter = origFilter }()
	statusFilter = "done"

	_, err := runCmd(t, statusCmd)
	if err == nil || !strings.Contains(err.Error(), "invalid --filter") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatusCmd_JSON(t *testing.T) {
	initTestVault(t)
	appendRow(t, "report", models.StatusError)

	origJSON := statusJSON
	defer func() { statusJSON = origJSON }()
	statusJSON = true

	out, err := runCmd(t, statusCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Counters models.Counters `json:"counters"`
		Tasks    []models.Task   `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if decoded.Counters.Errors != 1 || len(decoded.Tasks) != 1 || decoded.Tasks[0].Status != models.StatusError {
		t.Errorf("unexpected JSON board: %+v", decoded)
	}
}

func TestStatusCmd_WarnsOnDrift(t *testing.T) {
	initTestVault(t)
	appendRow(t, "report", models.StatusPending)
	if _, err := Board.AdjustCounters(models.Counters{Total: 1, Pending: 1}); err != nil {
		t.Fatalf("adjusting counters: %v", err)
	}

	out, err := runCmd(t, statusCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Counters disagree with the rows") {
		t.Errorf("expected drift warning:\n%s", out)
	}
}
