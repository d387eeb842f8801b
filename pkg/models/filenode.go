// Package models contains shared data types used by the console server
// and its API clients.
package models

import "time"

// NodeKind classifies a FileNode by what the editor can do with it.
type NodeKind string

const (
	KindDirectory  NodeKind = "directory"
	KindComponent  NodeKind = "component"  // .tsx
	KindModule     NodeKind = "module"     // .ts
	KindStylesheet NodeKind = "stylesheet" // .css
	KindFile       NodeKind = "file"       // listed but not editable
)

// FileNode represents a file or directory in the sandboxed source tree.
// Path is slash-separated and relative to the sandbox root.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Kind     NodeKind    `json:"kind"`
	Size     int64       `json:"size,omitempty"`
	ModTime  time.Time   `json:"mtime,omitzero"`
	Children []*FileNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n *FileNode) IsDir() bool { return n.Kind == KindDirectory }

// Editable reports whether the node's content may be read and written
// through the content store.
func (n *FileNode) Editable() bool {
	switch n.Kind {
	case KindComponent, KindModule, KindStylesheet:
		return true
	}
	return false
}

// BackupRecord describes one immutable snapshot of a file's content,
// taken just before the file was overwritten.
type BackupRecord struct {
	ID           string    `json:"id"`
	OriginalFile string    `json:"original_file"`
	SizeBytes    int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildStatus is the process-wide staleness view of the deployed build.
type BuildStatus struct {
	LastBuildAt          time.Time `json:"last_build_at,omitzero"`
	LatestSourceChangeAt time.Time `json:"latest_source_change_at,omitzero"`
	NeedsRebuild         bool      `json:"needs_rebuild"`
}
