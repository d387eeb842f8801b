// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/emberworks/codeconsole/internal/assist"
	"github.com/emberworks/codeconsole/internal/auth"
	"github.com/emberworks/codeconsole/internal/backup"
	"github.com/emberworks/codeconsole/internal/config"
	"github.com/emberworks/codeconsole/internal/deploy"
	"github.com/emberworks/codeconsole/internal/events"
	"github.com/emberworks/codeconsole/internal/index"
	"github.com/emberworks/codeconsole/internal/logging"
	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/internal/store"
	"github.com/emberworks/codeconsole/pkg/protocol"
)

// maxBodySize caps request bodies. Source files in the sandbox are
// small; anything past this is a mistake or abuse.
const maxBodySize = 4 << 20

// Server is the HTTP server.
type Server struct {
	index   *index.Index
	store   *store.Store
	backups *backup.Service
	deploy  *deploy.Orchestrator
	assist  *assist.Pipeline
	auth    *auth.Auth
	config  *config.Config

	// SSE
	broadcaster *events.Broadcaster
}

// NewServer creates a new server. assistPipeline may be nil when no
// model backend is configured; the assist endpoint then returns 502.
func NewServer(
	idx *index.Index,
	st *store.Store,
	backups *backup.Service,
	orch *deploy.Orchestrator,
	assistPipeline *assist.Pipeline,
	authHandler *auth.Auth,
	broadcaster *events.Broadcaster,
	cfg *config.Config,
) *Server {
	return &Server{
		index:       idx,
		store:       st,
		backups:     backups,
		deploy:      orch,
		assist:      assistPipeline,
		auth:        authHandler,
		broadcaster: broadcaster,
		config:      cfg,
	}
}

// Handler builds the route table and wraps it in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)

	// Protected endpoints
	protected := http.NewServeMux()

	// Tree and file endpoints
	protected.HandleFunc("GET /api/v1/tree", s.handleTree)
	protected.HandleFunc("GET /api/v1/files/{path...}", s.handleReadFile)
	protected.HandleFunc("PUT /api/v1/files/{path...}", s.handleWriteFile)

	// Backup endpoints
	protected.HandleFunc("GET /api/v1/backups", s.handleListBackups)
	protected.HandleFunc("GET /api/v1/backups/history", s.handleBackupHistory)
	protected.HandleFunc("GET /api/v1/backups/{id}", s.handleGetBackup)
	protected.HandleFunc("POST /api/v1/backups/{id}/restore", s.handleRestoreBackup)
	protected.HandleFunc("DELETE /api/v1/backups/{id}", s.handleDeleteBackup)

	// Build endpoints
	protected.HandleFunc("GET /api/v1/build/status", s.handleBuildStatus)
	protected.HandleFunc("POST /api/v1/build", s.handleBuild)

	// Assist endpoint
	protected.HandleFunc("POST /api/v1/assist", s.handleAssist)

	// SSE endpoint
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// publishEvent publishes an event to the broadcaster if available.
func (s *Server) publishEvent(event events.Event) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(event)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
	})
}

// sendStoreError maps store and backup errors to HTTP statuses.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrOutOfBounds):
		s.sendError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotEditable):
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, backup.ErrBackupNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	default:
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes a request body, rejecting unknown fields and
// oversized payloads.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
