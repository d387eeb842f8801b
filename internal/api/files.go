package api

import (
	"net/http"
	"strings"

	"github.com/emberworks/codeconsole/internal/events"
	"github.com/emberworks/codeconsole/pkg/protocol"
	"github.com/emberworks/codeconsole/pkg/tree"

	idx "github.com/emberworks/codeconsole/internal/index"
)

// ─── Tree ───────────────────────────────────────────────────────────────────

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	root, err := s.index.BuildTree()
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		root = idx.Filter(root, q)
	}

	s.sendJSON(w, http.StatusOK, protocol.TreeResponse{
		Root:  root,
		Total: tree.CountNodes(root),
	})
}

// ─── Content ────────────────────────────────────────────────────────────────

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	info, err := s.store.Read(path)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.FileContent{
		Path:     path,
		Content:  string(info.Content),
		Lines:    info.Lines,
		Size:     info.Size,
		Modified: info.ModTime,
	})
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	var req protocol.WriteRequest
	if err := readJSON(w, r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	// Empty content is a valid write; it clears the file.
	info, rec, err := s.store.Write(path, []byte(req.Content), req.CreateBackup)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	resp := protocol.WriteResponse{
		Path:     path,
		Lines:    info.Lines,
		Size:     info.Size,
		Modified: info.ModTime,
	}
	if rec != nil {
		resp.BackupID = rec.ID
	}

	s.publishEvent(events.Event{Type: events.EventFileSaved, Path: path})
	s.sendJSON(w, http.StatusOK, resp)
}
