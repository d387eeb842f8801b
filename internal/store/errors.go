package store

import "errors"

var (
	// ErrOutOfBounds is returned for paths that escape or fall outside
	// the sandbox root.
	ErrOutOfBounds = errors.New("store: path outside sandbox")

	// ErrNotFound is returned when the requested file does not exist.
	ErrNotFound = errors.New("store: file not found")

	// ErrNotEditable is returned for files whose extension is not
	// allowed through the editor.
	ErrNotEditable = errors.New("store: file type not editable")

	// ErrWriteFailed is returned when a write could not be completed.
	// The original file is left untouched.
	ErrWriteFailed = errors.New("store: write failed")
)
