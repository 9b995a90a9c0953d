package web

import (
	"net/http"
	"strings"
)

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Store == nil {
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	limit, offset := parsePagination(r)
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	payload, err := s.Store.ListReceipts(r.Context(), conversationID, limit, offset)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	paginatedResponse(w, payload, limit, offset)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Store == nil {
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	limit, offset := parsePagination(r)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	payload, err := s.Store.ListTasks(r.Context(), status, limit, offset)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	paginatedResponse(w, payload, limit, offset)
}

func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Store == nil {
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	limit, offset := parsePagination(r)
	action := strings.TrimSpace(r.URL.Query().Get("action"))
	payload, err := s.Store.ListAuditEvents(r.Context(), action, limit, offset)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	paginatedResponse(w, payload, limit, offset)
}
