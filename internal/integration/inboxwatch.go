package integration

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirSubscription delivers the base names of files created in a directory.
type DirSubscription struct {
	watcher *fsnotify.Watcher
	names   chan string
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

// SubscribeDir starts watching dir for newly created entries. Files moved
// into dir are reported as creations too.
func SubscribeDir(dir string) (*DirSubscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating directory watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	s := &DirSubscription{
		watcher: w,
		names:   make(chan string, 64),
		errs:    make(chan error, 8),
		done:    make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *DirSubscription) pump() {
	defer close(s.names)
	defer close(s.errs)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			select {
			case s.names <- filepath.Base(ev.Name):
			case <-s.done:
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errs <- err:
			case <-s.done:
				return
			default:
				// Drop when nobody is draining errors.
			}
		case <-s.done:
			return
		}
	}
}

// Names yields created file names. It is closed after Close.
func (s *DirSubscription) Names() <-chan string { return s.names }

// Errors yields watcher errors such as event queue overflows.
func (s *DirSubscription) Errors() <-chan error { return s.errs }

// Close stops the subscription.
func (s *DirSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}
