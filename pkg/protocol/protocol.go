// Package protocol defines the request and response bodies exchanged
// over the console HTTP API.
package protocol

import (
	"time"

	"github.com/emberworks/codeconsole/pkg/models"
)

// TokenRequest is the body of POST /api/v1/auth/token.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TreeResponse is the body of GET /api/v1/tree.
type TreeResponse struct {
	Root  *models.FileNode `json:"root"`
	Total int              `json:"total"`
}

// FileContent is the body of GET /api/v1/files/{path}.
type FileContent struct {
	Path     string    `json:"path"`
	Content  string    `json:"content"`
	Lines    int       `json:"lines"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// WriteRequest is the body of PUT /api/v1/files/{path}.
type WriteRequest struct {
	Content string `json:"content"`
	// CreateBackup snapshots the previous content before overwriting.
	CreateBackup bool `json:"create_backup"`
}

// WriteResponse reports the result of a successful write.
type WriteResponse struct {
	Path     string    `json:"path"`
	Lines    int       `json:"lines"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	BackupID string    `json:"backup_id,omitempty"`
}

// BackupListResponse is the body of GET /api/v1/backups.
type BackupListResponse struct {
	Backups []models.BackupRecord `json:"backups"`
}

// BackupContent is the body of GET /api/v1/backups/{id}.
type BackupContent struct {
	Backup  models.BackupRecord `json:"backup"`
	Content string              `json:"content"`
}

// RestoreRequest is the body of POST /api/v1/backups/{id}/restore.
type RestoreRequest struct {
	// TargetPath overrides the restore destination. Empty restores to
	// the backup's original file.
	TargetPath string `json:"target_path,omitempty"`
	// ProtectTarget snapshots the current target content before it is
	// overwritten by the restore.
	ProtectTarget bool `json:"protect_target"`
}

// RestoreResponse reports the result of a restore.
type RestoreResponse struct {
	Path     string `json:"path"`
	BackupID string `json:"backup_id,omitempty"`
}

// BuildResponse is the body of POST /api/v1/build.
type BuildResponse struct {
	Success    bool      `json:"success"`
	Transcript string    `json:"transcript"`
	DurationMS int64     `json:"duration_ms"`
	DeployedAt time.Time `json:"deployed_at,omitzero"`
}

// ChatTurn is one prior exchange in an assist chat thread.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AssistRequest is the body of POST /api/v1/assist.
type AssistRequest struct {
	Action      string     `json:"action"`
	Path        string     `json:"path,omitempty"`
	Code        string     `json:"code,omitempty"`
	Selection   string     `json:"selection,omitempty"`
	Language    string     `json:"language,omitempty"`
	Instruction string     `json:"instruction,omitempty"`
	History     []ChatTurn `json:"history,omitempty"`
	// Apply writes the resulting code back to Path on the server.
	Apply bool `json:"apply,omitempty"`
}

// AssistResponse carries the assistant's answer. Code is set when a
// fenced code block could be extracted from the raw response, and
// Applied when the server wrote the result back to Path directly.
type AssistResponse struct {
	Action  string `json:"action"`
	Answer  string `json:"answer"`
	Code    string `json:"code,omitempty"`
	Applied bool   `json:"applied,omitempty"`
}

// ErrorResponse is the uniform error body returned by every endpoint.
type ErrorResponse struct {
	Error      string `json:"error"`
	Transcript string `json:"transcript,omitempty"`
}
