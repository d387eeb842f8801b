package api

import (
	"errors"
	"net/http"

	"github.com/emberworks/codeconsole/internal/assist"
	"github.com/emberworks/codeconsole/internal/events"
	"github.com/emberworks/codeconsole/pkg/protocol"
)

// ─── AI Assist ──────────────────────────────────────────────────────────────

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		s.sendError(w, http.StatusBadGateway, "assist is not configured")
		return
	}

	var req protocol.AssistRequest
	if err := readJSON(w, r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	action := assist.Action(req.Action)
	if !assist.Known(action) {
		s.sendError(w, http.StatusBadRequest, "unknown action: "+req.Action)
		return
	}
	switch action {
	case assist.ActionGenerate, assist.ActionChat, assist.ActionDirectEdit:
		if req.Instruction == "" {
			s.sendError(w, http.StatusBadRequest, string(action)+" requires an instruction")
			return
		}
	}
	if req.Apply && req.Path == "" {
		s.sendError(w, http.StatusBadRequest, "apply requires a path")
		return
	}

	history := make([]assist.Turn, 0, len(req.History))
	for _, t := range req.History {
		history = append(history, assist.Turn{Role: t.Role, Text: t.Text})
	}

	result, err := s.assist.Invoke(r.Context(), assist.Request{
		Action:      action,
		Path:        req.Path,
		Code:        req.Code,
		Selection:   req.Selection,
		Language:    req.Language,
		Instruction: req.Instruction,
		History:     history,
	})
	if err != nil {
		ok := false
		s.publishEvent(events.Event{Type: events.EventAssistDone, Path: req.Path, Action: req.Action, Success: &ok})
		if errors.Is(err, assist.ErrUnavailable) {
			s.sendError(w, http.StatusBadGateway, err.Error())
		} else {
			s.sendError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := protocol.AssistResponse{
		Action: req.Action,
		Answer: result.Answer,
	}
	// The pipeline hands back the raw reply; any code block is pulled
	// out here, where it is about to matter.
	if code, err := assist.ExtractCodeBlock(result.Answer); err == nil {
		resp.Code = code
	}

	// Direct apply writes the extracted block back through the store,
	// with a safety snapshot of the current content. A reply without a
	// block must never land in a source file.
	if req.Apply {
		if resp.Code == "" {
			ok := false
			s.publishEvent(events.Event{Type: events.EventAssistDone, Path: req.Path, Action: req.Action, Success: &ok})
			s.sendError(w, http.StatusBadGateway, assist.ErrNoCodeBlock.Error())
			return
		}
		if _, _, err := s.store.Write(req.Path, []byte(resp.Code), true); err != nil {
			s.sendStoreError(w, err)
			return
		}
		resp.Applied = true
		s.publishEvent(events.Event{Type: events.EventFileSaved, Path: req.Path})
	}

	ok := true
	s.publishEvent(events.Event{Type: events.EventAssistDone, Path: req.Path, Action: req.Action, Success: &ok})
	s.sendJSON(w, http.StatusOK, resp)
}
