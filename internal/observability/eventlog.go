package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// EventLogFile is the event log's file name inside the vault.
const EventLogFile = ".factory_events.jsonl"

// Event is one line of the event log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "task.intake", "task.completed"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter selects events when reading. Zero fields match everything.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
	// Task matches the "task" field of the event data.
	Task string
}

// EventLog writes and reads pipeline events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog is an append-only JSONL file. The watcher and agent run as
// separate processes and share it; each Write is a single append.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (creating if needed) the event log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

func (l *jsonlEventLog) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the whole file and returns matching events in file order.
// Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f EventFilter) matches(event Event) bool {
	if f.Since != nil && event.Time.Before(*f.Since) {
		return false
	}
	if f.Until != nil && event.Time.After(*f.Until) {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.Level != "" && event.Level != f.Level {
		return false
	}
	if f.Task != "" {
		if task, _ := event.Data["task"].(string); task != f.Task {
			return false
		}
	}
	return true
}

// Recorder turns pipeline notifications into log events, filling in the
// time, level and message.
type Recorder struct {
	log EventLog
	now func() time.Time
}

// NewRecorder creates a Recorder writing to log.
func NewRecorder(log EventLog) *Recorder {
	return &Recorder{log: log, now: time.Now}
}

// LogEvent writes an event of the given type.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	return r.log.Write(Event{
		Time:    r.now().UTC(),
		Level:   eventLevel(eventType, data),
		Type:    eventType,
		Message: eventMessage(eventType, data),
		Data:    data,
	})
}

func eventLevel(eventType string, data map[string]any) string {
	switch eventType {
	case "task.failed":
		return "ERROR"
	case "task.read_failed", "generation.fallback":
		return "WARN"
	case "task.rejected":
		if reason, _ := data["reason"].(string); reason != "unsupported" {
			return "WARN"
		}
	case "agent.cycle":
		if _, failed := data["error"]; failed {
			return "WARN"
		}
	}
	return "INFO"
}

func eventMessage(eventType string, data map[string]any) string {
	subject, _ := data["task"].(string)
	if subject == "" {
		subject, _ = data["file"].(string)
	}
	verb := strings.ReplaceAll(strings.TrimPrefix(eventType, "task."), "_", " ")
	switch eventType {
	case "task.intake":
		return "staged " + subject
	case "task.rejected":
		reason, _ := data["reason"].(string)
		return fmt.Sprintf("rejected %s (%s)", subject, reason)
	case "generation.fallback":
		return "generation unavailable, used fallback text"
	case "agent.cycle":
		outcome, _ := data["outcome"].(string)
		return "agent cycle " + outcome
	}
	if subject == "" {
		return eventType
	}
	return fmt.Sprintf("%s %s", subject, verb)
}
