// Package store reads and writes source files inside the sandbox root.
// Every path is validated before any I/O, writes are atomic, and each
// overwrite snapshots the previous content first.
package store

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emberworks/codeconsole/internal/logging"
	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/pkg/models"
)

// editableExts are the extensions the editor may read and write.
var editableExts = map[string]struct{}{
	".tsx": {},
	".ts":  {},
	".css": {},
}

// Snapshotter persists a copy of a file's content before it is
// overwritten and returns the snapshot's record.
type Snapshotter interface {
	Snapshot(relPath string, content []byte) (models.BackupRecord, error)
}

// FileInfo describes a file's content and metadata after a read or
// write.
type FileInfo struct {
	Content []byte
	Size    int64
	Lines   int
	ModTime time.Time
}

// Store is the sandboxed file content store.
type Store struct {
	root string
	snap Snapshotter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Store rooted at root. snap may be nil, in which case
// overwrites are not snapshotted.
func New(root string, snap Snapshotter) *Store {
	return &Store{
		root:  root,
		snap:  snap,
		locks: make(map[string]*sync.Mutex),
	}
}

// pathLock returns the per-path write lock, creating it on first use.
func (s *Store) pathLock(relPath string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[relPath]
	if !ok {
		l = &sync.Mutex{}
		s.locks[relPath] = l
	}
	return l
}

// Validate checks that relPath stays inside the sandbox and names an
// editable file. It returns the cleaned path.
func (s *Store) Validate(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("%w: empty path", ErrOutOfBounds)
	}
	if strings.Contains(relPath, "\\") || path.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrOutOfBounds, relPath)
	}
	for _, part := range strings.Split(relPath, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrOutOfBounds, relPath)
		}
	}
	cleaned := path.Clean(relPath)
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutOfBounds, relPath)
	}

	if _, ok := editableExts[strings.ToLower(path.Ext(cleaned))]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotEditable, cleaned)
	}
	return cleaned, nil
}

// Read returns the content and metadata of a sandboxed file.
func (s *Store) Read(relPath string) (*FileInfo, error) {
	cleaned, err := s.Validate(relPath)
	if err != nil {
		metrics.RecordFileRead(false)
		return nil, err
	}

	abs := filepath.Join(s.root, filepath.FromSlash(cleaned))
	info, err := os.Stat(abs)
	if err != nil {
		metrics.RecordFileRead(false)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cleaned)
		}
		return nil, fmt.Errorf("stat %s: %w", cleaned, err)
	}
	if info.IsDir() {
		metrics.RecordFileRead(false)
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotEditable, cleaned)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		metrics.RecordFileRead(false)
		return nil, fmt.Errorf("read %s: %w", cleaned, err)
	}

	metrics.RecordFileRead(true)
	return &FileInfo{
		Content: content,
		Size:    info.Size(),
		Lines:   CountLines(content),
		ModTime: info.ModTime(),
	}, nil
}

// Write replaces the content of a sandboxed file. When createBackup is
// set and the file already exists, its previous content is snapshotted
// first and the returned record identifies that snapshot. The write is
// atomic: the file is staged in a temp file and renamed into place.
func (s *Store) Write(relPath string, content []byte, createBackup bool) (*FileInfo, *models.BackupRecord, error) {
	cleaned, err := s.Validate(relPath)
	if err != nil {
		metrics.RecordFileWrite(0, false)
		return nil, nil, err
	}

	lock := s.pathLock(cleaned)
	lock.Lock()
	defer lock.Unlock()

	abs := filepath.Join(s.root, filepath.FromSlash(cleaned))

	var backup *models.BackupRecord
	if prev, err := os.ReadFile(abs); err == nil && createBackup && s.snap != nil {
		rec, err := s.snap.Snapshot(cleaned, prev)
		if err != nil {
			metrics.RecordFileWrite(0, false)
			return nil, nil, fmt.Errorf("snapshot %s: %w", cleaned, err)
		}
		backup = &rec
	} else if err != nil && !os.IsNotExist(err) {
		metrics.RecordFileWrite(0, false)
		return nil, nil, fmt.Errorf("read previous %s: %w", cleaned, err)
	}

	if err := s.writeAtomic(abs, content); err != nil {
		metrics.RecordFileWrite(0, false)
		return nil, backup, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		metrics.RecordFileWrite(0, false)
		return nil, backup, fmt.Errorf("stat %s: %w", cleaned, err)
	}

	metrics.RecordFileWrite(info.Size(), true)
	logging.Info("file written",
		zap.String("path", cleaned),
		zap.Int64("size", info.Size()),
	)
	return &FileInfo{
		Content: content,
		Size:    info.Size(),
		Lines:   CountLines(content),
		ModTime: info.ModTime(),
	}, backup, nil
}

// writeAtomic stages content in a temp file next to dst and renames it
// into place.
func (s *Store) writeAtomic(dst string, content []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Restore writes content back to a sandboxed path. It goes through the
// same validation and atomic write as a normal write, but the target's
// current content is only snapshotted when protect is set.
func (s *Store) Restore(relPath string, content []byte, protect bool) (*models.BackupRecord, error) {
	cleaned, err := s.Validate(relPath)
	if err != nil {
		return nil, err
	}

	lock := s.pathLock(cleaned)
	lock.Lock()
	defer lock.Unlock()

	abs := filepath.Join(s.root, filepath.FromSlash(cleaned))

	var backup *models.BackupRecord
	if protect && s.snap != nil {
		if prev, err := os.ReadFile(abs); err == nil {
			rec, err := s.snap.Snapshot(cleaned, prev)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", cleaned, err)
			}
			backup = &rec
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read previous %s: %w", cleaned, err)
		}
	}

	if err := s.writeAtomic(abs, content); err != nil {
		return backup, err
	}
	logging.Info("file restored", zap.String("path", cleaned))
	return backup, nil
}

// Load returns a file's content as a string. It is the read half of
// the editing session's file store.
func (s *Store) Load(_ context.Context, relPath string) (string, error) {
	info, err := s.Read(relPath)
	if err != nil {
		return "", err
	}
	return string(info.Content), nil
}

// Save writes content back with a snapshot of the previous version.
// It is the write half of the editing session's file store.
func (s *Store) Save(_ context.Context, relPath, content string) error {
	_, _, err := s.Write(relPath, []byte(content), true)
	return err
}

// LatestSourceChange returns the most recent modification time of any
// editable file under the sandbox root.
func (s *Store) LatestSourceChange() (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != s.root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return latest, nil
}

// CountLines counts newline-delimited lines the way editors display
// them: empty content is zero lines, a trailing newline does not add
// a line.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := strings.Count(string(content), "\n")
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
