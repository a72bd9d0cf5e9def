package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/valter-silva-au/agent-factory/internal/storage"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// Board date and time formats.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

// IntakeOutcome describes what happened to one Inbox entry.
type IntakeOutcome string

const (
	IntakeAccepted    IntakeOutcome = "accepted"
	IntakeIgnored     IntakeOutcome = "ignored"
	IntakeUnsupported IntakeOutcome = "unsupported"
	IntakeConflict    IntakeOutcome = "conflict"
	IntakeFailed      IntakeOutcome = "failed"
)

// IntakeResult is the result of handling one Inbox entry.
type IntakeResult struct {
	File    string
	Outcome IntakeOutcome
	Task    models.Task
	Err     error
}

// WatcherOptions tunes the intake watcher.
type WatcherOptions struct {
	// Debounce is waited after a live event before the file is handled, so
	// writers can finish.
	Debounce time.Duration
	// RescanInterval re-sweeps the Inbox periodically to catch events the
	// OS notifier dropped. Zero disables it.
	RescanInterval time.Duration
	Now            func() time.Time
}

// IntakeWatcher moves new documents from Inbox to Needs_Action and records
// a Pending row for each.
type IntakeWatcher interface {
	// Run sweeps the Inbox once and then handles live events until ctx is
	// cancelled.
	Run(ctx context.Context) error
	// Sweep handles every supported file currently in the Inbox, oldest
	// first.
	Sweep(ctx context.Context) ([]IntakeResult, error)
	// Accept handles a single Inbox entry by name.
	Accept(name string) IntakeResult
}

type intakeWatcher struct {
	staging   storage.StagingManager
	board     storage.BoardStore
	subscribe SubscribeFunc
	events    EventLogger
	logger    *slog.Logger
	opts      WatcherOptions
}

// NewIntakeWatcher creates an IntakeWatcher. events and logger may be nil.
func NewIntakeWatcher(staging storage.StagingManager, board storage.BoardStore, subscribe SubscribeFunc, events EventLogger, logger *slog.Logger, opts WatcherOptions) IntakeWatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &intakeWatcher{
		staging:   staging,
		board:     board,
		subscribe: subscribe,
		events:    events,
		logger:    logger.With("component", "watcher"),
		opts:      opts,
	}
}

func (w *intakeWatcher) Run(ctx context.Context) error {
	if err := CheckVault(w.staging, w.board); err != nil {
		return err
	}

	inbox := w.staging.Path(models.StageInbox, "")
	// Subscribe before sweeping so nothing created in between is missed;
	// duplicates are dropped by Accept.
	src, err := w.subscribe(inbox)
	if err != nil {
		return fmt.Errorf("%w: subscribing to %s: %w", ErrConfiguration, inbox, err)
	}
	defer src.Close()

	w.logger.Info("watching inbox", "dir", inbox)
	if _, err := w.Sweep(ctx); err != nil {
		w.logger.Error("startup sweep failed", "error", err)
	}

	var rescan <-chan time.Time
	if w.opts.RescanInterval > 0 {
		ticker := time.NewTicker(w.opts.RescanInterval)
		defer ticker.Stop()
		rescan = ticker.C
	}

	names := src.Names()
	errs := src.Errors()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return nil
		case name, ok := <-names:
			if !ok {
				return fmt.Errorf("inbox subscription closed")
			}
			w.wait(ctx, w.opts.Debounce)
			w.report(w.Accept(name))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("inbox notifier error", "error", err)
		case <-rescan:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("inbox rescan failed", "error", err)
			}
		}
	}
}

func (w *intakeWatcher) Sweep(ctx context.Context) ([]IntakeResult, error) {
	entries, err := w.staging.List(models.StageInbox)
	if err != nil {
		return nil, fmt.Errorf("listing inbox: %w", err)
	}

	var results []IntakeResult
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		res := w.Accept(e.Name)
		w.report(res)
		results = append(results, res)
	}
	return results, nil
}

func (w *intakeWatcher) Accept(name string) IntakeResult {
	res := IntakeResult{File: name}

	if strings.HasPrefix(name, ".") {
		res.Outcome = IntakeIgnored
		return res
	}
	if !models.IsSupported(name) {
		res.Outcome = IntakeUnsupported
		res.Err = fmt.Errorf("%s: %w", name, ErrUnsupportedFileType)
		return res
	}

	info, err := os.Lstat(w.staging.Path(models.StageInbox, name))
	if err != nil || info.IsDir() {
		// Already taken by an earlier event, or never a file.
		res.Outcome = IntakeIgnored
		return res
	}

	taskName := models.TaskName(name)
	if err := w.checkUnique(taskName); err != nil {
		res.Outcome = IntakeConflict
		res.Err = err
		if !errors.Is(err, storage.ErrFileConflict) {
			res.Outcome = IntakeFailed
		}
		return res
	}

	if err := w.staging.Relocate(name, models.StageInbox, models.StageNeedsAction); err != nil {
		switch {
		case errors.Is(err, storage.ErrSourceMissing):
			res.Outcome = IntakeIgnored
		case errors.Is(err, storage.ErrFileConflict):
			res.Outcome = IntakeConflict
			res.Err = err
		default:
			res.Outcome = IntakeFailed
			res.Err = err
		}
		return res
	}

	now := w.opts.Now()
	task, err := w.board.AppendRow(models.Task{
		Name:   taskName,
		Status: models.StatusPending,
		Date:   now.Format(DateLayout),
		Time:   now.Format(ClockLayout),
		Link:   path.Join(string(models.StageNeedsAction), name),
	})
	if errors.Is(err, storage.ErrDuplicateTask) {
		// checkUnique passed before the move, so the row can only come from
		// the agent adopting the file while it sat in Needs_Action. The file
		// stays put; moving it back would strand it behind that row.
		res.Outcome = IntakeAccepted
		res.Task = w.adoptedRow(taskName)
		return res
	}
	if err != nil {
		res.Outcome = IntakeFailed
		res.Err = fmt.Errorf("recording %s on board: %w", taskName, err)
		if rbErr := w.staging.Relocate(name, models.StageNeedsAction, models.StageInbox); rbErr != nil {
			res.Err = errors.Join(res.Err, fmt.Errorf("rolling back relocation: %w", rbErr))
		}
		return res
	}

	res.Outcome = IntakeAccepted
	res.Task = task
	return res
}

func (w *intakeWatcher) adoptedRow(taskName string) models.Task {
	if b, err := w.board.Snapshot(); err == nil {
		if row, ok := b.Row(taskName); ok {
			return row
		}
	}
	return models.Task{Name: taskName}
}

// checkUnique rejects a task name already present on the board or staged
// beyond the Inbox.
func (w *intakeWatcher) checkUnique(taskName string) error {
	b, err := w.board.Snapshot()
	if err != nil {
		return fmt.Errorf("reading board: %w", err)
	}
	if _, ok := b.Row(taskName); ok {
		return fmt.Errorf("task %q already on board: %w", taskName, storage.ErrFileConflict)
	}
	stages, err := w.staging.Locate(taskName)
	if err != nil {
		return err
	}
	for _, s := range stages {
		if s != models.StageInbox {
			return fmt.Errorf("task %q already in %s: %w", taskName, s, storage.ErrFileConflict)
		}
	}
	return nil
}

func (w *intakeWatcher) report(res IntakeResult) {
	switch res.Outcome {
	case IntakeAccepted:
		w.logger.Info("task staged", "file", res.File, "task", res.Task.Name, "seq", res.Task.Seq)
		logEvent(w.events, "task.intake", map[string]any{
			"task": res.Task.Name,
			"file": res.File,
			"seq":  res.Task.Seq,
		})
	case IntakeUnsupported:
		w.logger.Info("skipping unsupported file", "file", res.File)
		logEvent(w.events, "task.rejected", map[string]any{"file": res.File, "reason": "unsupported"})
	case IntakeConflict:
		w.logger.Warn("file left in inbox", "file", res.File, "error", res.Err)
		logEvent(w.events, "task.rejected", map[string]any{"file": res.File, "reason": "conflict", "error": res.Err.Error()})
	case IntakeFailed:
		w.logger.Error("intake failed", "file", res.File, "error", res.Err)
		logEvent(w.events, "task.rejected", map[string]any{"file": res.File, "reason": "error", "error": res.Err.Error()})
	}
}

// wait sleeps for d or until ctx is done.
func (w *intakeWatcher) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
