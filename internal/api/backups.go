package api

import (
	"net/http"
	"strconv"

	"github.com/emberworks/codeconsole/internal/events"
	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/pkg/protocol"
)

// ─── Backups ────────────────────────────────────────────────────────────────

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := s.backups.List(r.Context())
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.BackupListResponse{Backups: backups})
}

func (s *Server) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, content, err := s.backups.Get(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.BackupContent{
		Backup:  rec,
		Content: string(content),
	})
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req protocol.RestoreRequest
	if err := readJSON(w, r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, content, err := s.backups.Get(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	target := req.TargetPath
	if target == "" {
		target = rec.OriginalFile
	}

	safety, err := s.store.Restore(target, content, req.ProtectTarget)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	resp := protocol.RestoreResponse{Path: target}
	if safety != nil {
		resp.BackupID = safety.ID
	}
	metrics.RecordBackupRestored()

	s.publishEvent(events.Event{Type: events.EventFileRestored, Path: target, BackupID: id})
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.backups.Delete(r.Context(), id); err != nil {
		s.sendStoreError(w, err)
		return
	}

	s.publishEvent(events.Event{Type: events.EventBackupDeleted, BackupID: id})
	s.sendJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleBackupHistory serves the audit trail from the optional
// database index. Deleted backups stay visible here.
func (s *Server) handleBackupHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	history, err := s.backups.History(r.Context(), limit)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.BackupListResponse{Backups: history})
}
