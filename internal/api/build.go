package api

import (
	"errors"
	"net/http"

	"github.com/emberworks/codeconsole/internal/deploy"
	"github.com/emberworks/codeconsole/internal/events"
	"github.com/emberworks/codeconsole/pkg/protocol"
)

// ─── Build & Deploy ─────────────────────────────────────────────────────────

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.deploy.Status()
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, status)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	s.publishEvent(events.Event{Type: events.EventBuildStarted})

	result, err := s.deploy.BuildAndDeploy(r.Context())
	if err != nil {
		failed := false
		s.publishEvent(events.Event{Type: events.EventBuildFinished, Success: &failed})

		var buildErr *deploy.BuildError
		switch {
		case errors.Is(err, deploy.ErrBuildInProgress):
			s.sendError(w, http.StatusConflict, err.Error())
		case errors.As(err, &buildErr):
			s.sendJSON(w, http.StatusBadGateway, protocol.ErrorResponse{
				Error:      buildErr.Error(),
				Transcript: buildErr.Transcript,
			})
		default:
			s.sendError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	ok := true
	s.publishEvent(events.Event{Type: events.EventBuildFinished, Success: &ok})
	s.sendJSON(w, http.StatusOK, protocol.BuildResponse{
		Success:    true,
		Transcript: result.Transcript,
		DurationMS: result.Duration.Milliseconds(),
		DeployedAt: result.DeployedAt,
	})
}
