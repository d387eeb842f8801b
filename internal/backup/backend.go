// Package backup snapshots file content before overwrites and restores
// earlier versions on demand.
package backup

import (
	"context"
	"errors"
	"time"
)

// ErrBackupNotFound is returned when no backup exists for the given id.
var ErrBackupNotFound = errors.New("backup: not found")

// ObjectInfo describes one stored backup object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend is the interface for backup object storage.
// Implementations handle raw object I/O (local filesystem, S3).
// Keys are slash-separated and opaque to the backend.
type Backend interface {
	// Put stores content at the given key.
	Put(ctx context.Context, key string, content []byte) error

	// Get retrieves the content stored at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object at key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List returns all stored objects.
	List(ctx context.Context) ([]ObjectInfo, error)

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
