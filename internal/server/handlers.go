package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rodrigo/nfse-collector/internal/orchestrator"
)

// handleIssueToken exchanges the operator password for a bearer token.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !s.passwords.VerifyPassword(req.Password) {
		credErr := &ErrInvalidCredentials{}
		s.errorResponse(w, HTTPStatus(credErr), credErr.Error())
		return
	}

	token, err := s.jwtService.GenerateToken()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"token":      token,
		"token_type": "Bearer",
	})
}

// handleEnqueueRun validates and queues a collection run.
func (s *Server) handleEnqueueRun(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	snapshot, err := s.orch.Enqueue(r.Context(), req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, snapshot)
}

// handleRunStatus returns the latest run snapshot for an account.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account_id")

	snapshot, err := s.orch.GetStatus(accountID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, snapshot)
}

// handleRunLogStream streams a run's log lines over SSE until the run
// reaches a terminal status or the client disconnects.
func (s *Server) handleRunLogStream(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account_id")

	if _, err := s.orch.GetStatus(accountID); errors.Is(err, orchestrator.ErrRunNotFound) {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snapshot, err := s.orch.GetStatus(accountID)
			if err != nil {
				sse.WriteError(err.Error())
				return
			}

			for ; sent < len(snapshot.Logs); sent++ {
				if err := sse.WriteEvent("log", map[string]string{"line": snapshot.Logs[sent]}); err != nil {
					return
				}
			}

			if snapshot.Status.Terminal() {
				sse.WriteComplete(accountID, string(snapshot.Status))
				return
			}
		}
	}
}
