package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"wrapops/internal/gateway"
)

// handleGatewayRoute executes one authorized side effect through the
// gateway. Authorization failures come back as a result object with
// success=false, never as a transport error.
func (s *Server) handleGatewayRoute(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Gateway == nil {
		http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req gateway.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.RequestedBy) == "" {
		if actor, ok := ActorFromContext(r.Context()); ok {
			req.RequestedBy = actor.ID
		}
	}
	if strings.TrimSpace(string(req.Action)) == "" {
		http.Error(w, "action required", http.StatusBadRequest)
		return
	}
	result := s.Gateway.Route(r.Context(), req)
	if result.Success && req.Context.ConversationID != "" {
		s.emit("gateway.routed", result, req.Context.ConversationID)
	}
	_ = json.NewEncoder(w).Encode(result)
}
