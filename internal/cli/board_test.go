package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/agent-factory/internal/observability"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

func sampleBoardMsg() boardLoadedMsg {
	tasks := []models.Task{
		{Seq: 1, Name: "capital", Status: models.StatusCompleted, Date: "2026-03-14", Time: "09:00:00", Link: "Done/capital.md"},
		{Seq: 2, Name: "report", Status: models.StatusPending, Date: "2026-03-14", Time: "09:10:00", Link: "Needs_Action/report.docx"},
	}
	return boardLoadedMsg{
		board: &models.Board{Counters: models.CountRows(tasks), LastUpdated: "2026-03-14 09:10:00", Tasks: tasks},
		metrics: &metricsSnapshot{
			staged:     2,
			completed:  1,
			fallbacks:  1,
			eventCount: 7,
		},
		alerts: []alertSnapshot{
			{severity: "medium", message: "task report is in Error", time: "2026-03-14 09:30"},
		},
	}
}

func TestBoardModel_Init(t *testing.T) {
	m := newBoardModel()

	if m.activePanel != panelTasks {
		t.Errorf("expected activePanel = %d, got %d", panelTasks, m.activePanel)
	}
	if !m.loading {
		t.Error("expected loading = true on init")
	}
	if cmd := m.Init(); cmd == nil {
		t.Error("expected Init to return a non-nil command")
	}
}

func TestBoardModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyEscape},
		{Type: tea.KeyCtrlC},
	} {
		m := newBoardModel()
		m.loading = false

		_, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("expected tea.Quit command from %s", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("expected tea.QuitMsg from %s", key)
		}
	}
}

func TestBoardModel_KeyTab(t *testing.T) {
	m := newBoardModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if cmd != nil {
		t.Error("expected no command from tab key")
	}
	bm := updated.(boardModel)
	if bm.activePanel != panelMetrics {
		t.Errorf("expected panel %d after first tab, got %d", panelMetrics, bm.activePanel)
	}

	updated, _ = bm.Update(tea.KeyMsg{Type: tea.KeyTab})
	bm = updated.(boardModel)
	updated, _ = bm.Update(tea.KeyMsg{Type: tea.KeyTab})
	bm = updated.(boardModel)
	if bm.activePanel != panelTasks {
		t.Errorf("expected panel %d after wrap, got %d", panelTasks, bm.activePanel)
	}
}

func TestBoardModel_KeyShiftTab(t *testing.T) {
	m := newBoardModel()

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if bm := updated.(boardModel); bm.activePanel != panelAlerts {
		t.Errorf("expected panel %d after shift+tab from 0, got %d", panelAlerts, bm.activePanel)
	}
}

func TestBoardModel_KeyR(t *testing.T) {
	m := newBoardModel()
	m.loading = false

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if !updated.(boardModel).loading {
		t.Error("expected loading = true after pressing r")
	}
	if cmd == nil {
		t.Error("expected a load command from r key")
	}
}

func TestBoardModel_RefreshTickReschedules(t *testing.T) {
	m := newBoardModel()
	_, cmd := m.Update(refreshTickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected reload and next tick after refreshTickMsg")
	}
}

func TestBoardModel_DataLoaded(t *testing.T) {
	m := newBoardModel()

	updated, cmd := m.Update(sampleBoardMsg())
	if cmd != nil {
		t.Error("expected no command after boardLoadedMsg")
	}
	bm := updated.(boardModel)
	if bm.loading {
		t.Error("expected loading = false after data loaded")
	}
	if len(bm.tasks.Rows()) != 2 {
		t.Fatalf("expected 2 table rows, got %d", len(bm.tasks.Rows()))
	}
	if got := bm.tasks.Rows()[1][1]; got != "report" {
		t.Errorf("row 2 task = %q, want report", got)
	}
	if !bm.consistent {
		t.Error("expected consistent counters")
	}
	if bm.counters.Pending != 1 || bm.metricsData.eventCount != 7 || len(bm.alerts) != 1 {
		t.Errorf("unexpected model state: %+v", bm)
	}
}

func TestBoardModel_DataLoadedError(t *testing.T) {
	m := newBoardModel()
	updated, _ := m.Update(boardLoadedMsg{err: errors.New("board is malformed")})
	bm := updated.(boardModel)
	if bm.err == nil {
		t.Fatal("expected error to be stored")
	}

	updated, _ = bm.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	if view := updated.(boardModel).View(); !strings.Contains(view, "board is malformed") {
		t.Errorf("expected error in view:\n%s", view)
	}
}

func TestBoardModel_View(t *testing.T) {
	m := newBoardModel()
	if m.View() != "Loading..." {
		t.Errorf("expected Loading... before the first window size")
	}

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	updated, _ = updated.(boardModel).Update(sampleBoardMsg())
	view := updated.(boardModel).View()

	for _, want := range []string{"Agent Factory", "Total 2", "capital", "Metrics (24h)", "Fallbacks", "[MEDIUM]", "task report is in Error"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "factory reconcile") {
		t.Error("unexpected drift warning for consistent counters")
	}
}

func TestBoardModel_ViewDriftWarning(t *testing.T) {
	msg := sampleBoardMsg()
	msg.board.Counters.Total = 5

	m := newBoardModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	updated, _ = updated.(boardModel).Update(msg)
	if view := updated.(boardModel).View(); !strings.Contains(view, "factory reconcile") {
		t.Errorf("expected drift warning in view:\n%s", view)
	}
}

func TestLoadBoardData(t *testing.T) {
	initTestVault(t)
	appendRow(t, "report", models.StatusPending)

	origMetrics, origAlerts := MetricsCalc, AlertEngine
	defer func() { MetricsCalc, AlertEngine = origMetrics, origAlerts }()
	MetricsCalc = &metricsMock{calcFn: func(time.Time) (*observability.Metrics, error) {
		return &observability.Metrics{TasksStaged: 1, EventCount: 1}, nil
	}}
	AlertEngine = staticAlerts(
		observability.Alert{Severity: observability.SeverityLow, Message: "low one"},
		observability.Alert{Severity: observability.SeverityHigh, Message: "high one"},
	)

	msg, ok := loadBoardData().(boardLoadedMsg)
	if !ok {
		t.Fatalf("expected boardLoadedMsg, got %T", msg)
	}
	if msg.err != nil {
		t.Fatalf("unexpected error: %v", msg.err)
	}
	if len(msg.board.Tasks) != 1 || msg.metrics.staged != 1 {
		t.Errorf("unexpected data: %+v", msg)
	}
	if len(msg.alerts) != 2 || msg.alerts[0].severity != "high" {
		t.Errorf("expected alerts sorted high first, got %+v", msg.alerts)
	}
}

func TestLoadBoardData_NilBoard(t *testing.T) {
	orig := Board
	defer func() { Board = orig }()
	Board = nil

	msg := loadBoardData().(boardLoadedMsg)
	if msg.err == nil {
		t.Fatal("expected error when board is nil")
	}
}
