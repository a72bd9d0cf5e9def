package observability

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	Task        string        `json:"task,omitempty"` // row the alert is about, if any
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	PendingHours int `yaml:"pending_hours" json:"pending_hours"`
	MaxPending   int `yaml:"max_pending" json:"max_pending"`
}

// DefaultAlertThresholds returns the default thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{PendingHours: 24, MaxPending: 10}
}

// BoardReader reads the status board. storage.BoardStore satisfies it.
type BoardReader interface {
	Snapshot() (*models.Board, error)
}

// AlertEngine evaluates alert conditions.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	board      BoardReader
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
	loc        *time.Location
}

// NewAlertEngine creates an AlertEngine over the board and, optionally, the
// event log. eventLog may be nil.
func NewAlertEngine(board BoardReader, eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		board:      board,
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
		loc:        time.Local,
	}
}

// Evaluate checks every condition and returns the alerts that fire.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	b, err := ae.board.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("reading board for alerts: %w", err)
	}
	now := ae.now()

	var alerts []Alert
	alerts = append(alerts, ae.checkCounterDrift(b, now)...)
	alerts = append(alerts, ae.checkErrors(b, now)...)
	alerts = append(alerts, ae.checkStalePending(b, now)...)
	alerts = append(alerts, ae.checkBacklog(b, now)...)

	fallbackAlerts, err := ae.checkFallbacks(now)
	if err != nil {
		return nil, fmt.Errorf("checking generation fallbacks: %w", err)
	}
	alerts = append(alerts, fallbackAlerts...)

	return alerts, nil
}

// checkCounterDrift fires when the counters disagree with the rows.
func (ae *alertEngine) checkCounterDrift(b *models.Board, now time.Time) []Alert {
	rows := models.CountRows(b.Tasks)
	if b.Counters == rows {
		return nil
	}
	return []Alert{{
		ID:        "counter-drift",
		Condition: "counter_drift",
		Severity:  SeverityHigh,
		Message: fmt.Sprintf("board counters (total %d, completed %d, pending %d, errors %d) disagree with rows (total %d, completed %d, pending %d, errors %d); run 'factory reconcile'",
			b.Counters.Total, b.Counters.Completed, b.Counters.Pending, b.Counters.Errors,
			rows.Total, rows.Completed, rows.Pending, rows.Errors),
		TriggeredAt: now,
	}}
}

func (ae *alertEngine) checkErrors(b *models.Board, now time.Time) []Alert {
	var alerts []Alert
	for _, t := range b.Tasks {
		if t.Status != models.StatusError {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "error-" + t.Name,
			Condition:   "task_error",
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("task %s failed on %s %s and needs attention", t.Name, t.Date, t.Time),
			Task:        t.Name,
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkStalePending fires for rows that have been Pending longer than the
// threshold, judged by the row's own date and time.
func (ae *alertEngine) checkStalePending(b *models.Board, now time.Time) []Alert {
	if ae.thresholds.PendingHours <= 0 {
		return nil
	}
	threshold := time.Duration(ae.thresholds.PendingHours) * time.Hour

	var alerts []Alert
	for _, t := range b.Tasks {
		if t.Status != models.StatusPending {
			continue
		}
		since, err := time.ParseInLocation("2006-01-02 15:04:05", t.Date+" "+t.Time, ae.loc)
		if err != nil || now.Sub(since) <= threshold {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "pending-" + t.Name,
			Condition:   "task_pending_too_long",
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("task %s has been pending for more than %d hours", t.Name, ae.thresholds.PendingHours),
			Task:        t.Name,
			TriggeredAt: now,
		})
	}
	return alerts
}

func (ae *alertEngine) checkBacklog(b *models.Board, now time.Time) []Alert {
	pending := 0
	for _, t := range b.Tasks {
		if t.Status == models.StatusPending {
			pending++
		}
	}
	if pending <= ae.thresholds.MaxPending {
		return nil
	}
	return []Alert{{
		ID:          "pending-backlog",
		Condition:   "backlog_too_large",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d tasks are pending, exceeding the maximum of %d", pending, ae.thresholds.MaxPending),
		TriggeredAt: now,
	}}
}

// checkFallbacks fires when the agent answered with fallback text during the
// last day because the generation service failed.
func (ae *alertEngine) checkFallbacks(now time.Time) ([]Alert, error) {
	if ae.eventLog == nil {
		return nil, nil
	}
	since := now.Add(-24 * time.Hour)
	events, err := ae.eventLog.Read(EventFilter{Type: "generation.fallback", Since: &since})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return []Alert{{
		ID:          "generation-fallback",
		Condition:   "generation_unavailable",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("text generation failed %d times in the last 24 hours; responses used fallback text", len(events)),
		TriggeredAt: now,
	}}, nil
}
