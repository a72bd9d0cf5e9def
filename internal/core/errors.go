package core

import (
	"errors"
	"fmt"

	"github.com/valter-silva-au/agent-factory/internal/storage"
)

var (
	// ErrConfiguration is fatal at startup: missing directories, an
	// unreadable board or invalid settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedFileType marks an Inbox entry that is not a supported
	// document. The entry is skipped, never staged.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrReadFailure means a document could not be read. The task keeps its
	// state and is retried on a later cycle.
	ErrReadFailure = errors.New("reading task document failed")

	// ErrEmptyDocument means a document held no text to respond to.
	ErrEmptyDocument = errors.New("task document is empty")

	// ErrGenerationFailure is recovered locally by substituting fallback text.
	ErrGenerationFailure = errors.New("text generation failed")

	// ErrCommitFailure means the response, relocation or board update of a
	// processed task failed.
	ErrCommitFailure = errors.New("committing task failed")
)

// CheckVault verifies the staging directories and the board before a loop
// starts.
func CheckVault(staging storage.StagingManager, board storage.BoardStore) error {
	if err := staging.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if _, err := board.Snapshot(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}
