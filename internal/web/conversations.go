package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"wrapops/internal/db"
)

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.Store == nil {
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/conversations/"), "/")
	conversationID := path
	sub := ""
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		conversationID = path[:idx]
		sub = path[idx+1:]
	}
	if conversationID == "" {
		http.Error(w, "conversation_id required", http.StatusBadRequest)
		return
	}
	switch sub {
	case "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		conv, err := s.Store.GetConversation(r.Context(), conversationID)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		if conv == nil {
			// Console deep links sometimes carry a quote id instead.
			conv, err = s.Store.GetConversationByQuote(r.Context(), conversationID)
			if err != nil {
				http.Error(w, "db error", http.StatusInternalServerError)
				return
			}
		}
		if conv == nil {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(conv)
	case "flags":
		s.handleConversationFlags(w, r, conversationID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleConversationFlags(w http.ResponseWriter, r *http.Request, conversationID string) {
	switch r.Method {
	case http.MethodGet:
		flags, err := s.Store.GetConversationFlags(r.Context(), conversationID)
		if err != nil {
			if errors.Is(err, db.ErrConversationNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(flags)
	case http.MethodPatch, http.MethodPut:
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var flags db.ConversationFlags
		if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Store.UpdateConversationFlags(r.Context(), conversationID, flags); err != nil {
			if errors.Is(err, db.ErrConversationNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		s.auditEvent(r.Context(), "conversation.flags", "allow", map[string]any{
			"conversation_id":   conversationID,
			"ai_paused":         flags.AIPaused,
			"approval_required": flags.ApprovalRequired,
			"autopilot_allowed": flags.AutopilotAllowed,
		}, "")
		s.emit("conversation.flags", flags, conversationID)
		_ = json.NewEncoder(w).Encode(flags)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
