// Package mcp exposes the status board, task history, metrics and alerts
// as MCP (Model Context Protocol) tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/agent-factory/internal/observability"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// Server exposes read-only views of the pipeline as MCP tools.
type Server struct {
	server      *gomcp.Server
	board       observability.BoardReader
	eventLog    observability.EventLog
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates an MCP server. eventLog, metricsCalc and alertEngine may
// be nil; the tools that need them then return an error result.
func NewServer(board observability.BoardReader, eventLog observability.EventLog, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		board:       board,
		eventLog:    eventLog,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "factory", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getBoardInput struct {
	Status string `json:"status,omitempty" jsonschema:"only return rows with this status (Pending, Completed, Error)"`
}

type countersOutput struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}

type taskOutput struct {
	Seq    int    `json:"seq"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Link   string `json:"link"`
}

type getBoardOutput struct {
	Counters    countersOutput `json:"counters"`
	Consistent  bool           `json:"consistent"`
	LastUpdated string         `json:"last_updated"`
	Tasks       []taskOutput   `json:"tasks"`
	Count       int            `json:"count"`
}

type getTaskInput struct {
	Name string `json:"name" jsonschema:"required,the task name: the document file name without its extension"`
}

type historyEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type getTaskOutput struct {
	Task    taskOutput     `json:"task"`
	History []historyEntry `json:"history,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TasksStaged      int            `json:"tasks_staged"`
	TasksCompleted   int            `json:"tasks_completed"`
	TasksFailed      int            `json:"tasks_failed"`
	ReadFailures     int            `json:"read_failures"`
	Rejected         map[string]int `json:"rejected"`
	ByClassification map[string]int `json:"by_classification"`
	Fallbacks        int            `json:"fallbacks"`
	FallbackRate     float64        `json:"fallback_rate"`
	AgentCycles      int            `json:"agent_cycles"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	Task        string `json:"task,omitempty"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_board",
		Description: "Get the status board: counters, last-updated stamp and task rows, optionally filtered by status.",
	}, s.handleGetBoard)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get one board row by task name together with its event history.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get pipeline metrics from the event log: staged, completed, failed and rejected tasks, classifications and fallback use.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (long-pending tasks, error rows, backlog size, counter drift, generation outages).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetBoard(_ context.Context, _ *gomcp.CallToolRequest, input getBoardInput) (*gomcp.CallToolResult, getBoardOutput, error) {
	if input.Status != "" && !models.TaskStatus(input.Status).Valid() {
		return errorResult(fmt.Sprintf("invalid status %q: must be one of Pending, Completed, Error", input.Status)), getBoardOutput{}, nil
	}

	b, err := s.board.Snapshot()
	if err != nil {
		return errorResult(fmt.Sprintf("reading board: %s", err)), getBoardOutput{}, nil
	}

	out := getBoardOutput{
		Counters: countersOutput{
			Total:     b.Counters.Total,
			Completed: b.Counters.Completed,
			Pending:   b.Counters.Pending,
			Errors:    b.Counters.Errors,
		},
		Consistent:  b.Counters.Check() == nil,
		LastUpdated: b.LastUpdated,
		Tasks:       []taskOutput{},
	}
	for _, t := range b.Tasks {
		if input.Status != "" && string(t.Status) != input.Status {
			continue
		}
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	out.Count = len(out.Tasks)
	return nil, out, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, getTaskOutput, error) {
	if input.Name == "" {
		return errorResult("name is required"), getTaskOutput{}, nil
	}

	b, err := s.board.Snapshot()
	if err != nil {
		return errorResult(fmt.Sprintf("reading board: %s", err)), getTaskOutput{}, nil
	}
	task, ok := b.Row(models.TaskName(input.Name))
	if !ok {
		return errorResult(fmt.Sprintf("task %q is not on the board", input.Name)), getTaskOutput{}, nil
	}

	out := getTaskOutput{Task: taskToOutput(task)}
	if s.eventLog != nil {
		events, err := s.eventLog.Read(observability.EventFilter{Task: task.Name})
		if err != nil {
			return errorResult(fmt.Sprintf("reading task history: %s", err)), getTaskOutput{}, nil
		}
		for _, e := range events {
			if e.Type == "agent.cycle" {
				continue
			}
			out.History = append(out.History, historyEntry{
				Time:    e.Time.Format(time.RFC3339),
				Type:    e.Type,
				Level:   e.Level,
				Message: e.Message,
			})
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log could not be opened)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksStaged:      metrics.TasksStaged,
		TasksCompleted:   metrics.TasksCompleted,
		TasksFailed:      metrics.TasksFailed,
		ReadFailures:     metrics.ReadFailures,
		Rejected:         metrics.Rejected,
		ByClassification: metrics.ByClassification,
		Fallbacks:        metrics.Fallbacks,
		FallbackRate:     metrics.FallbackRate(),
		AgentCycles:      metrics.AgentCycles,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			Task:        a.Task,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	return taskOutput{
		Seq:    t.Seq,
		Name:   t.Name,
		Status: string(t.Status),
		Date:   t.Date,
		Time:   t.Time,
		Link:   t.Link,
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		Rejected:         make(map[string]int),
		ByClassification: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a duration like "7d" or "24h" into the matching time in
// the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
