package storage

import (
	"errors"
	"fmt"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

var (
	// ErrLayout is returned when a staging directory or the board is missing
	// or unusable at startup.
	ErrLayout = errors.New("vault layout invalid")

	// ErrFileConflict is returned when a relocation target already holds a
	// file of the same name.
	ErrFileConflict = errors.New("file already exists at destination")

	// ErrSourceMissing is returned when the file to relocate is gone.
	ErrSourceMissing = errors.New("source file missing")

	// ErrIOFailure wraps any other filesystem failure during relocation.
	ErrIOFailure = errors.New("filesystem operation failed")

	// ErrMalformedBoard is returned when the board document cannot be parsed.
	ErrMalformedBoard = errors.New("malformed status board")

	// ErrRowNotFound is returned when no board row carries the given name.
	ErrRowNotFound = errors.New("board row not found")

	// ErrDuplicateTask is returned when appending a row whose name exists.
	ErrDuplicateTask = errors.New("task already on board")

	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCounterInvariant is returned when a mutation would leave the
	// counters negative or inconsistent.
	ErrCounterInvariant = errors.New("board counter invariant violated")
)

// RelocateError describes a failed move between stages.
type RelocateError struct {
	Name string
	From models.Stage
	To   models.Stage
	Err  error
}

func (e *RelocateError) Error() string {
	return fmt.Sprintf("relocating %s from %s to %s: %v", e.Name, e.From, e.To, e.Err)
}

func (e *RelocateError) Unwrap() error { return e.Err }
