package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// Entry is a supported document sitting in a stage directory.
type Entry struct {
	Name    string
	ModTime time.Time
}

// StagingManager owns the Inbox, Needs_Action and Done directories.
type StagingManager interface {
	// Root returns the vault directory holding the stages.
	Root() string
	// Path returns the location of name within stage.
	Path(stage models.Stage, name string) string
	// Ensure creates any missing stage directory.
	Ensure() error
	// Verify checks that every stage directory exists.
	Verify() error
	// List returns the supported documents in stage, oldest first.
	List(stage models.Stage) ([]Entry, error)
	// Exists reports whether stage holds a file called name.
	Exists(stage models.Stage, name string) bool
	// Locate returns the stages whose directories hold a document with the
	// given task name, whatever its extension.
	Locate(taskName string) ([]models.Stage, error)
	// Relocate moves name from one stage to another without overwriting.
	Relocate(name string, from, to models.Stage) error
}

type dirStagingManager struct {
	root string
}

// NewStagingManager creates a StagingManager rooted at the vault directory.
func NewStagingManager(root string) StagingManager {
	return &dirStagingManager{root: root}
}

func (m *dirStagingManager) Root() string {
	return m.root
}

func (m *dirStagingManager) dir(stage models.Stage) string {
	return filepath.Join(m.root, string(stage))
}

func (m *dirStagingManager) Path(stage models.Stage, name string) string {
	return filepath.Join(m.dir(stage), name)
}

func (m *dirStagingManager) Ensure() error {
	for _, stage := range models.Stages {
		if err := os.MkdirAll(m.dir(stage), 0o755); err != nil {
			return fmt.Errorf("creating %s directory: %w", stage, err)
		}
	}
	return nil
}

func (m *dirStagingManager) Verify() error {
	var missing []string
	for _, stage := range models.Stages {
		info, err := os.Stat(m.dir(stage))
		if err != nil || !info.IsDir() {
			missing = append(missing, m.dir(stage))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing directories:\n  - %s", ErrLayout, strings.Join(missing, "\n  - "))
	}
	return nil
}

func (m *dirStagingManager) List(stage models.Stage) ([]Entry, error) {
	dirEntries, err := os.ReadDir(m.dir(stage))
	if err != nil {
		return nil, fmt.Errorf("reading %s directory: %w", stage, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !models.IsSupported(de.Name()) || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), ModTime: info.ModTime()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	return entries, nil
}

func (m *dirStagingManager) Exists(stage models.Stage, name string) bool {
	_, err := os.Lstat(m.Path(stage, name))
	return err == nil
}

func (m *dirStagingManager) Locate(taskName string) ([]models.Stage, error) {
	var found []models.Stage
	for _, stage := range models.Stages {
		dirEntries, err := os.ReadDir(m.dir(stage))
		if err != nil {
			return nil, fmt.Errorf("reading %s directory: %w", stage, err)
		}
		for _, de := range dirEntries {
			if !de.IsDir() && models.IsSupported(de.Name()) && models.TaskName(de.Name()) == taskName {
				found = append(found, stage)
				break
			}
		}
	}
	return found, nil
}

// Relocate hard-links the file into the destination, which fails if the
// name is taken, then removes the source. Filesystems without hard links
// fall back to a checked rename.
func (m *dirStagingManager) Relocate(name string, from, to models.Stage) error {
	src := m.Path(from, name)
	dst := m.Path(to, name)
	fail := func(err error) error {
		return &RelocateError{Name: name, From: from, To: to, Err: err}
	}

	if _, err := os.Lstat(src); err != nil {
		if os.IsNotExist(err) {
			return fail(ErrSourceMissing)
		}
		return fail(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}

	err := os.Link(src, dst)
	switch {
	case err == nil:
		if err := os.Remove(src); err != nil {
			// Undo so the file stays in exactly one stage.
			_ = os.Remove(dst)
			return fail(fmt.Errorf("%w: removing source: %w", ErrIOFailure, err))
		}
		return nil
	case errors.Is(err, os.ErrExist):
		return fail(ErrFileConflict)
	case linkUnsupported(err):
		if _, statErr := os.Lstat(dst); statErr == nil {
			return fail(ErrFileConflict)
		}
		if err := os.Rename(src, dst); err != nil {
			return fail(fmt.Errorf("%w: %w", ErrIOFailure, err))
		}
		return nil
	default:
		return fail(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
}

func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.EMLINK)
}
