package observability

import (
	"fmt"
	"time"
)

// Metrics holds pipeline throughput derived from the event log.
type Metrics struct {
	TasksStaged      int            `json:"tasks_staged"`
	TasksCompleted   int            `json:"tasks_completed"`
	TasksFailed      int            `json:"tasks_failed"`
	ReadFailures     int            `json:"read_failures"`
	Rejected         map[string]int `json:"rejected"`
	ByClassification map[string]int `json:"by_classification"`
	Fallbacks        int            `json:"fallbacks"`
	AgentCycles      int            `json:"agent_cycles"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// FallbackRate is the share of completed tasks answered with fallback text.
func (m *Metrics) FallbackRate() float64 {
	if m.TasksCompleted == 0 {
		return 0
	}
	return float64(m.Fallbacks) / float64(m.TasksCompleted)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		Rejected:         make(map[string]int),
		ByClassification: make(map[string]int),
		EventCount:       len(events),
	}

	for _, event := range events {
		t := event.Time
		if m.OldestEvent == nil || t.Before(*m.OldestEvent) {
			m.OldestEvent = &t
		}
		if m.NewestEvent == nil || t.After(*m.NewestEvent) {
			m.NewestEvent = &t
		}

		switch event.Type {
		case "task.intake":
			m.TasksStaged++
		case "task.rejected":
			reason, _ := event.Data["reason"].(string)
			if reason == "" {
				reason = "unknown"
			}
			m.Rejected[reason]++
		case "task.completed":
			m.TasksCompleted++
			if label, ok := event.Data["label"].(string); ok && label != "" {
				m.ByClassification[label]++
			}
			if fallback, _ := event.Data["fallback"].(bool); fallback {
				m.Fallbacks++
			}
		case "task.failed":
			m.TasksFailed++
		case "task.read_failed":
			m.ReadFailures++
		case "agent.cycle":
			m.AgentCycles++
		}
	}

	return m, nil
}
