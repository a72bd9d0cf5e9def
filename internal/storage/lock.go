package storage

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// boardLock serialises board writers across processes. The watcher and the
// agent usually run as separate commands against one vault, which the
// store's mutex does not cover. The lock lives in a sibling file because
// the board itself is replaced by rename on every write.
type boardLock struct {
	path string
}

func newBoardLock(boardPath string) boardLock {
	return boardLock{path: boardPath + ".lock"}
}

// acquire blocks until this process holds the lock.
func (l boardLock) acquire() (release func(), err error) {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening board lock: %w", err)
	}

	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring board lock: %w", err)
	}

	// Closing the descriptor drops the lock even if the explicit unlock
	// fails.
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}
