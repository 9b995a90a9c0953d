package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"wrapops/internal/detect"
	"wrapops/internal/dispatch"
)

type AlertRequest struct {
	AlertType      string                `json:"alert_type"`
	OrganizationID string                `json:"organization_id,omitempty"`
	Context        dispatch.AlertContext `json:"context"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodPost:
		if s.Dispatcher == nil {
			http.Error(w, "dispatcher unavailable", http.StatusServiceUnavailable)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req AlertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		alertType := strings.TrimSpace(req.AlertType)
		if alertType == "" {
			// Classify from the summary text when the caller did not name
			// an alert type.
			alertType = detect.Classify(req.Context.Summary)
			if alertType == "" {
				http.Error(w, "alert_type required", http.StatusBadRequest)
				return
			}
			if req.Context.CustomerEmail == "" {
				if email, ok := detect.ExtractEmail(req.Context.Summary); ok {
					req.Context.CustomerEmail = email
				}
			}
		}
		if !detect.ValidAlertType(alertType) {
			http.Error(w, "unknown alert_type", http.StatusBadRequest)
			return
		}
		orgID := strings.TrimSpace(req.OrganizationID)
		if orgID == "" {
			orgID = s.DefaultOrgID
		}
		result, err := s.Dispatcher.SendAlert(r.Context(), alertType, req.Context, orgID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Context.ConversationID != "" {
			s.emit("alert.dispatched", result, req.Context.ConversationID)
		}
		_ = json.NewEncoder(w).Encode(result)
	case http.MethodGet:
		if s.Store == nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		limit, offset := parsePagination(r)
		alertType := strings.TrimSpace(r.URL.Query().Get("alert_type"))
		payload, err := s.Store.ListAgentAlerts(r.Context(), alertType, limit, offset)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		paginatedResponse(w, payload, limit, offset)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
