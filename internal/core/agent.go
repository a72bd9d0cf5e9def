package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/agent-factory/internal/storage"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// DefaultAgentInterval is the pause between agent cycles.
const DefaultAgentInterval = 5 * time.Second

// CycleOutcome summarises one agent cycle.
type CycleOutcome string

const (
	CycleIdle       CycleOutcome = "idle"
	CycleCompleted  CycleOutcome = "completed"
	CycleFailed     CycleOutcome = "failed"
	CycleReadFailed CycleOutcome = "read_failed"
)

// CycleResult describes what one agent cycle did.
type CycleResult struct {
	CycleID  string
	File     string
	Task     string
	Label    models.Classification
	Outcome  CycleOutcome
	Fallback bool
	Err      error
}

// AgentOptions tunes the triage agent.
type AgentOptions struct {
	Interval time.Duration
	// MaxReadAttempts quarantines a file for the life of the process after
	// this many consecutive read failures. Zero means never.
	MaxReadAttempts int
	Now             func() time.Time
}

// TriageAgent processes staged tasks one at a time: select, obtain and
// classify, respond, commit.
type TriageAgent interface {
	// RunOnce processes at most one task. The returned error covers
	// failures outside any single task, such as an unreadable board; task
	// failures are reported in the result.
	RunOnce(ctx context.Context) (*CycleResult, error)
	// Run repeats RunOnce with a pause between cycles until ctx is
	// cancelled. A cycle in progress is allowed to finish.
	Run(ctx context.Context) error
}

type triageAgent struct {
	staging      storage.StagingManager
	board        storage.BoardStore
	docs         DocumentStore
	gen          ResponseGenerator
	events       EventLogger
	logger       *slog.Logger
	opts         AgentOptions
	readFailures map[string]int
	// unrecorded holds files whose failure could not be written to the
	// board. Their rows still read Pending, so they are skipped for the life
	// of the process to keep each task answered at most once.
	unrecorded map[string]bool
}

// NewTriageAgent creates a TriageAgent. gen may be nil, in which case every
// task is answered with fallback text. events and logger may be nil.
func NewTriageAgent(staging storage.StagingManager, board storage.BoardStore, docs DocumentStore, gen ResponseGenerator, events EventLogger, logger *slog.Logger, opts AgentOptions) TriageAgent {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultAgentInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &triageAgent{
		staging:      staging,
		board:        board,
		docs:         docs,
		gen:          gen,
		events:       events,
		logger:       logger.With("component", "agent"),
		opts:         opts,
		readFailures: make(map[string]int),
		unrecorded:   make(map[string]bool),
	}
}

func (a *triageAgent) Run(ctx context.Context) error {
	if err := CheckVault(a.staging, a.board); err != nil {
		return err
	}
	a.logger.Info("agent started", "interval", a.opts.Interval, "live_generation", a.gen != nil)

	for {
		if ctx.Err() != nil {
			break
		}
		if _, err := a.RunOnce(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error("agent cycle failed", "error", err)
		}

		t := time.NewTimer(a.opts.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	a.logger.Info("agent stopping")
	return nil
}

func (a *triageAgent) RunOnce(ctx context.Context) (*CycleResult, error) {
	res := &CycleResult{CycleID: uuid.NewString(), Outcome: CycleIdle}

	entry, row, onBoard, err := a.selectTask()
	if err != nil {
		return res, err
	}
	if entry == "" {
		return res, nil
	}
	res.File = entry
	res.Task = models.TaskName(entry)

	if !onBoard {
		// Files placed directly in Needs_Action are adopted so the counters
		// account for them.
		now := a.opts.Now()
		adopted, err := a.board.AppendRow(models.Task{
			Name:   res.Task,
			Status: models.StatusPending,
			Date:   now.Format(DateLayout),
			Time:   now.Format(ClockLayout),
			Link:   path.Join(string(models.StageNeedsAction), entry),
		})
		switch {
		case errors.Is(err, storage.ErrDuplicateTask):
			// Intake recorded it since the selection snapshot.
		case err != nil:
			return res, fmt.Errorf("adopting %s: %w", entry, err)
		default:
			row = adopted
			a.logger.Info("adopted task without a board row", "file", entry, "seq", row.Seq)
		}
	}

	a.process(ctx, res)
	a.record(res)
	return res, nil
}

// selectTask picks the oldest file in Needs_Action whose row is still
// Pending or missing and which is not quarantined.
func (a *triageAgent) selectTask() (string, models.Task, bool, error) {
	entries, err := a.staging.List(models.StageNeedsAction)
	if err != nil {
		return "", models.Task{}, false, fmt.Errorf("listing %s: %w", models.StageNeedsAction, err)
	}
	if len(entries) == 0 {
		return "", models.Task{}, false, nil
	}

	b, err := a.board.Snapshot()
	if err != nil {
		return "", models.Task{}, false, fmt.Errorf("reading board: %w", err)
	}

	for _, e := range entries {
		row, ok := b.Row(models.TaskName(e.Name))
		if ok && row.Status.Terminal() {
			continue
		}
		if a.unrecorded[e.Name] {
			continue
		}
		if a.opts.MaxReadAttempts > 0 && a.readFailures[e.Name] >= a.opts.MaxReadAttempts {
			continue
		}
		return e.Name, row, ok, nil
	}
	return "", models.Task{}, false, nil
}

func (a *triageAgent) process(ctx context.Context, res *CycleResult) {
	docPath := a.staging.Path(models.StageNeedsAction, res.File)

	content, err := a.docs.Read(docPath)
	if err != nil {
		a.readFailures[res.File]++
		res.Outcome = CycleReadFailed
		res.Err = fmt.Errorf("%w: %w", ErrReadFailure, err)
		return
	}
	delete(a.readFailures, res.File)

	if strings.TrimSpace(content) == "" {
		a.fail(res, ErrEmptyDocument)
		return
	}

	res.Label = Classify(content)
	body, fallback := a.respond(ctx, content, res.Label)
	res.Fallback = fallback

	resp := models.Response{Processed: a.opts.Now(), Label: res.Label, Body: body}
	if err := a.docs.AppendResponse(docPath, resp); err != nil {
		a.fail(res, fmt.Errorf("%w: writing response: %w", ErrCommitFailure, err))
		return
	}

	if err := a.staging.Relocate(res.File, models.StageNeedsAction, models.StageDone); err != nil {
		a.fail(res, fmt.Errorf("%w: %w", ErrCommitFailure, err))
		return
	}

	now := a.opts.Now()
	link := path.Join(string(models.StageDone), res.File)
	if _, err := a.board.Transition(res.Task, models.StatusCompleted, now.Format(DateLayout), now.Format(ClockLayout), link); err != nil {
		commitErr := fmt.Errorf("%w: updating board: %w", ErrCommitFailure, err)
		// Keep the file beside its row rather than leave it in Done while
		// the board still says otherwise.
		if rbErr := a.staging.Relocate(res.File, models.StageDone, models.StageNeedsAction); rbErr != nil {
			commitErr = errors.Join(commitErr, fmt.Errorf("rolling back relocation: %w", rbErr))
		}
		a.fail(res, commitErr)
		return
	}

	res.Outcome = CycleCompleted
}

// respond asks the generator for text, substituting fallback text when no
// generator is configured or the call fails.
func (a *triageAgent) respond(ctx context.Context, content string, label models.Classification) (string, bool) {
	if a.gen == nil {
		return FallbackResponse(label), true
	}
	text, err := a.gen.Generate(ctx, content, label)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, false
	}
	if err == nil {
		err = errors.New("empty response")
	}
	a.logger.Warn("using fallback response", "error", fmt.Errorf("%w: %w", ErrGenerationFailure, err))
	logEvent(a.events, "generation.fallback", map[string]any{"label": string(label), "error": err.Error()})
	return FallbackResponse(label), true
}

// fail marks the task Error on the board, leaving the file where it is.
func (a *triageAgent) fail(res *CycleResult, cause error) {
	res.Outcome = CycleFailed
	res.Err = cause

	now := a.opts.Now()
	if _, err := a.board.Transition(res.Task, models.StatusError, now.Format(DateLayout), now.Format(ClockLayout), ""); err != nil {
		res.Err = errors.Join(cause, fmt.Errorf("marking %s as error: %w", res.Task, err))
		a.unrecorded[res.File] = true
	}
}

func (a *triageAgent) record(res *CycleResult) {
	data := map[string]any{
		"cycle_id": res.CycleID,
		"task":     res.Task,
		"file":     res.File,
		"label":    string(res.Label),
		"outcome":  string(res.Outcome),
		"fallback": res.Fallback,
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
	}

	switch res.Outcome {
	case CycleCompleted:
		a.logger.Info("task completed", "task", res.Task, "label", res.Label, "fallback", res.Fallback)
		logEvent(a.events, "task.completed", data)
	case CycleFailed:
		a.logger.Error("task failed", "task", res.Task, "error", res.Err)
		logEvent(a.events, "task.failed", data)
	case CycleReadFailed:
		a.logger.Warn("could not read task, will retry", "task", res.Task, "attempts", a.readFailures[res.File], "error", res.Err)
		logEvent(a.events, "task.read_failed", data)
	}
	logEvent(a.events, "agent.cycle", data)
}
