package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// TimestampLayout is the format of the board's last-updated stamp.
const TimestampLayout = "2006-01-02 15:04:05"

// BoardStore owns the status board document. Every mutation runs through a
// single gate: the whole document is read, transformed and written back
// while an in-process mutex and an exclusive file lock are held, so the
// watcher and agent processes never lose each other's updates.
type BoardStore interface {
	// Path returns the board file location.
	Path() string
	// Init writes an empty board if none exists.
	Init() error
	// Snapshot reads the current board without mutating it.
	Snapshot() (*models.Board, error)
	// AppendRow adds a row at the end of the table with Seq set to the
	// current row count plus one, and counts it in the same mutation.
	AppendRow(task models.Task) (models.Task, error)
	// UpdateRow rewrites the status, date, time and link of the row named
	// name. It does not touch the counters. An empty link is recovered from
	// the existing row.
	UpdateRow(name string, status models.TaskStatus, date, clock, link string) (models.Task, error)
	// Transition moves a row to a new status and applies the matching
	// counter deltas in one mutation.
	Transition(name string, to models.TaskStatus, date, clock, link string) (models.Task, error)
	// AdjustCounters adds delta to the counters.
	AdjustCounters(delta models.Counters) (models.Counters, error)
	// TouchTimestamp rewrites the last-updated stamp.
	TouchTimestamp() error
	// Reconcile recomputes the counters from the rows.
	Reconcile() (models.Counters, error)
}

// BoardOption configures a BoardStore.
type BoardOption func(*fileBoardStore)

// WithClock overrides the time source used for the last-updated stamp.
func WithClock(now func() time.Time) BoardOption {
	return func(s *fileBoardStore) {
		s.now = now
	}
}

type fileBoardStore struct {
	path string
	lock boardLock
	mu   sync.Mutex
	now  func() time.Time
}

// NewBoardStore creates a BoardStore for the board file at boardPath.
func NewBoardStore(boardPath string, opts ...BoardOption) BoardStore {
	s := &fileBoardStore{
		path: boardPath,
		lock: newBoardLock(boardPath),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *fileBoardStore) Path() string {
	return s.path
}

func (s *fileBoardStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.lock.acquire()
	if err != nil {
		return fmt.Errorf("initializing board: %w", err)
	}
	defer release()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking board: %w", err)
	}

	b := &models.Board{LastUpdated: s.stamp()}
	if err := WriteBoardFile(s.path, b); err != nil {
		return fmt.Errorf("initializing board: %w", err)
	}
	return nil
}

func (s *fileBoardStore) Snapshot() (*models.Board, error) {
	b, err := ReadBoardFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: board %s does not exist", ErrLayout, s.path)
		}
		return nil, err
	}
	return b, nil
}

func (s *fileBoardStore) AppendRow(task models.Task) (models.Task, error) {
	if task.Name == "" {
		return models.Task{}, fmt.Errorf("appending row: task name is empty")
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if !task.Status.Valid() {
		return models.Task{}, fmt.Errorf("appending row %q: unknown status %q", task.Name, task.Status)
	}

	err := s.mutate(func(b *models.Board) error {
		if b.Find(task.Name) >= 0 {
			return fmt.Errorf("appending row %q: %w", task.Name, ErrDuplicateTask)
		}
		task.Seq = len(b.Tasks) + 1
		b.Tasks = append(b.Tasks, task)
		b.Counters = b.Counters.Add(models.TransitionDelta("", task.Status))
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *fileBoardStore) UpdateRow(name string, status models.TaskStatus, date, clock, link string) (models.Task, error) {
	var updated models.Task
	err := s.mutate(func(b *models.Board) error {
		i := b.Find(name)
		if i < 0 {
			return fmt.Errorf("updating row %q: %w", name, ErrRowNotFound)
		}
		applyUpdate(&b.Tasks[i], status, date, clock, link)
		updated = b.Tasks[i]
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

func (s *fileBoardStore) Transition(name string, to models.TaskStatus, date, clock, link string) (models.Task, error) {
	var updated models.Task
	err := s.mutate(func(b *models.Board) error {
		i := b.Find(name)
		if i < 0 {
			return fmt.Errorf("transitioning row %q: %w", name, ErrRowNotFound)
		}
		from := b.Tasks[i].Status
		if !models.CanTransition(from, to) {
			return fmt.Errorf("transitioning row %q from %s to %s: %w", name, from, to, ErrInvalidTransition)
		}
		applyUpdate(&b.Tasks[i], to, date, clock, link)
		b.Counters = b.Counters.Add(models.TransitionDelta(from, to))
		updated = b.Tasks[i]
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

func (s *fileBoardStore) AdjustCounters(delta models.Counters) (models.Counters, error) {
	var result models.Counters
	err := s.mutate(func(b *models.Board) error {
		b.Counters = b.Counters.Add(delta)
		result = b.Counters
		return nil
	})
	return result, err
}

func (s *fileBoardStore) TouchTimestamp() error {
	return s.mutate(func(*models.Board) error { return nil })
}

func (s *fileBoardStore) Reconcile() (models.Counters, error) {
	var result models.Counters
	err := s.mutate(func(b *models.Board) error {
		b.Counters = models.CountRows(b.Tasks)
		result = b.Counters
		return nil
	})
	return result, err
}

// mutate is the single gate for board writes. fn receives the freshly read
// board and edits it in place; the result is stamped and written back
// before the lock is released. A board whose counters were consistent
// before fn must still be consistent after it, and no counter may go
// negative.
func (s *fileBoardStore) mutate(fn func(b *models.Board) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.lock.acquire()
	if err != nil {
		return fmt.Errorf("locking board: %w", err)
	}
	defer release()

	b, err := s.Snapshot()
	if err != nil {
		return err
	}
	consistent := b.Counters.Check() == nil

	if err := fn(b); err != nil {
		return err
	}

	if err := b.Counters.Check(); err != nil && (consistent || b.Counters.Negative()) {
		return fmt.Errorf("%w: %v", ErrCounterInvariant, err)
	}

	b.LastUpdated = s.stamp()
	if err := WriteBoardFile(s.path, b); err != nil {
		return fmt.Errorf("writing board: %w", err)
	}
	return nil
}

func (s *fileBoardStore) stamp() string {
	return s.now().Format(TimestampLayout)
}

// applyUpdate sets the mutable fields of a row. An empty link keeps the
// row's current file name re-rooted under the stage matching status; a
// row with no link at all falls back to "<name>.md".
func applyUpdate(t *models.Task, status models.TaskStatus, date, clock, link string) {
	if link == "" {
		link = recoverLink(*t, status)
	}
	t.Status = status
	t.Date = date
	t.Time = clock
	t.Link = link
}

func recoverLink(t models.Task, status models.TaskStatus) string {
	file := t.Name + ".md"
	if t.Link != "" {
		file = path.Base(t.Link)
	}
	if status == models.StatusCompleted {
		return path.Join(string(models.StageDone), file)
	}
	if t.Link != "" {
		return t.Link
	}
	return file
}
