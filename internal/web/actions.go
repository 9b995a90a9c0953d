package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"wrapops/internal/actions"
	"wrapops/internal/gateway"
)

type DecisionRequest struct {
	DecidedBy string `json:"decided_by"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodPost:
		if s.Gateway == nil {
			http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req gateway.ProposeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.CreatedBy) == "" {
			if actor, ok := ActorFromContext(r.Context()); ok {
				req.CreatedBy = actor.ID
			}
		}
		result, err := s.Gateway.ProposeAction(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), proposeStatus(err))
			return
		}
		s.emit("action.proposed", result, req.ConversationID)
		writeJSON(w, http.StatusCreated, result)
	case http.MethodGet:
		if s.Store == nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		limit, offset := parsePagination(r)
		conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		payload, err := s.Store.ListActions(r.Context(), conversationID, status, limit, offset)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		paginatedResponse(w, payload, limit, offset)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleActionByID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/actions/"), "/")
	actionID := path
	decision := ""
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		actionID = path[:idx]
		decision = path[idx+1:]
	}
	if actionID == "" {
		http.Error(w, "action_id required", http.StatusBadRequest)
		return
	}
	switch {
	case decision == "" && r.Method == http.MethodGet:
		if s.Store == nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		action, err := s.Store.GetAction(r.Context(), actionID)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		if action == nil {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(action)
	case decision == "approve" || decision == "reject":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleDecision(w, r, actionID, decision == "approve")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleDecision records a human verdict on a pending action. A lost
// race against another approver comes back as 409, not a silent win.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request, actionID string, approve bool) {
	if s.Gateway == nil {
		http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	decidedBy := strings.TrimSpace(req.DecidedBy)
	if decidedBy == "" {
		if actor, ok := ActorFromContext(r.Context()); ok {
			decidedBy = actor.ID
		}
	}
	if decidedBy == "" {
		http.Error(w, "decided_by required", http.StatusBadRequest)
		return
	}
	action, err := s.Gateway.Resolve(r.Context(), actionID, decidedBy, approve)
	if err != nil {
		http.Error(w, err.Error(), decisionStatus(err))
		return
	}

	resp := map[string]any{"action": action}
	if approve && s.Starter != nil && action != nil {
		workflowID, startErr := s.Starter.StartExecution(r.Context(), *action)
		if startErr != nil {
			// The approval stands; the poller will pick the action up.
			resp["execution_error"] = startErr.Error()
		} else {
			resp["workflow_id"] = workflowID
		}
	}
	conversationID := ""
	if action != nil {
		conversationID = action.ConversationID
	}
	s.emit("action.updated", action, conversationID)
	_ = json.NewEncoder(w).Encode(resp)
}

func proposeStatus(err error) int {
	if strings.HasPrefix(err.Error(), "Unauthorized requester") {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

func decisionStatus(err error) int {
	var invalid *actions.ErrInvalidTransition
	switch {
	case errors.Is(err, gateway.ErrConflict), errors.As(err, &invalid):
		return http.StatusConflict
	case strings.HasPrefix(err.Error(), "Unauthorized requester"):
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}
