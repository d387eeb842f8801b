// Package session tracks one editing session: which file is open,
// its baseline and working content, and whether a save is in flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emberworks/codeconsole/internal/store"
)

// State is the session lifecycle state.
type State string

const (
	// StateEmpty means no file is open.
	StateEmpty State = "empty"
	// StateClean means the working copy matches the stored content.
	StateClean State = "clean"
	// StateDirty means the working copy has unsaved edits.
	StateDirty State = "dirty"
	// StateSaving means a save is in flight.
	StateSaving State = "saving"
)

// Resolution tells Open what to do with unsaved edits.
type Resolution int

const (
	// KeepUnsaved refuses to switch files while dirty.
	KeepUnsaved Resolution = iota
	// SaveAndSwitch saves the current file before switching.
	SaveAndSwitch
	// DiscardAndSwitch drops unsaved edits and switches.
	DiscardAndSwitch
)

var (
	// ErrUnsavedChanges is returned when an operation would discard
	// unsaved edits.
	ErrUnsavedChanges = errors.New("session: unsaved changes")

	// ErrNoFileOpen is returned when an operation needs an open file.
	ErrNoFileOpen = errors.New("session: no file open")

	// ErrSaveInProgress is returned when a save is already running.
	ErrSaveInProgress = errors.New("session: save in progress")
)

// FileStore loads and saves file content. Implemented by the content
// store, which snapshots the previous content on every save.
type FileStore interface {
	Load(ctx context.Context, path string) (string, error)
	Save(ctx context.Context, path, content string) error
}

var _ FileStore = (*store.Store)(nil)

// Session is a single editing session. All methods are safe for
// concurrent use. The session is dirty exactly when the working copy
// differs from the content loaded or last saved.
type Session struct {
	fs FileStore

	mu       sync.Mutex
	path     string
	original string
	current  string
	saving   bool
}

// New returns an empty session over the given file store.
func New(fs FileStore) *Session {
	return &Session{fs: fs}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.saving:
		return StateSaving
	case s.path == "":
		return StateEmpty
	case s.current != s.original:
		return StateDirty
	default:
		return StateClean
	}
}

// Path returns the open file's path, empty when no file is open.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Content returns the working copy of the open file.
func (s *Session) Content() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return "", ErrNoFileOpen
	}
	return s.current, nil
}

// Open loads a file into the session. When the session is dirty,
// resolution decides whether the edits are saved first, discarded,
// or the switch refused with ErrUnsavedChanges.
func (s *Session) Open(ctx context.Context, path string, resolution Resolution) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	if s.stateLocked() == StateDirty {
		switch resolution {
		case SaveAndSwitch:
			s.mu.Unlock()
			if err := s.Save(ctx); err != nil {
				return err
			}
			s.mu.Lock()
		case DiscardAndSwitch:
			// fall through, edits dropped
		default:
			prev := s.path
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnsavedChanges, prev)
		}
	}
	s.mu.Unlock()

	content, err := s.fs.Load(ctx, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.original = content
	s.current = content
	return nil
}

// Edit replaces the working copy. Editing back to the baseline makes
// the session clean again.
func (s *Session) Edit(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return ErrNoFileOpen
	}
	if s.saving {
		return ErrSaveInProgress
	}
	s.current = content
	return nil
}

// ApplyAssistResult replaces the working copy with assistant output.
// Same semantics as Edit.
func (s *Session) ApplyAssistResult(code string) error {
	return s.Edit(code)
}

// Revert discards edits and restores the baseline.
func (s *Session) Revert() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return ErrNoFileOpen
	}
	if s.saving {
		return ErrSaveInProgress
	}
	s.current = s.original
	return nil
}

// Save persists the working copy through the file store. On success
// the working copy becomes the new baseline; on failure the session
// stays dirty with its edits intact.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return ErrNoFileOpen
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.saving = true
	path, content := s.path, s.current
	s.mu.Unlock()

	err := s.fs.Save(ctx, path, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		return err
	}
	s.original = content
	return nil
}

// Close discards the session. Closing over unsaved edits fails with
// ErrUnsavedChanges unless force is set.
func (s *Session) Close(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return ErrSaveInProgress
	}
	if s.stateLocked() == StateDirty && !force {
		return fmt.Errorf("%w: %s", ErrUnsavedChanges, s.path)
	}

	s.path = ""
	s.original = ""
	s.current = ""
	return nil
}
