package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"wrapops/internal/metrics"
)

// handleEventsSSE streams the change feed. A conversation_id query
// parameter narrows the stream to one conversation; without it the
// subscriber sees every event.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	_, _ = fmt.Fprint(w, ":ok\n\n")
	flusher.Flush()

	metrics.ActiveSSEConnections.Inc()
	defer metrics.ActiveSSEConnections.Dec()

	hub := s.eventHub()
	ch, cancel := hub.Subscribe(conversationID)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			name := strings.TrimSpace(ev.Event)
			if name == "" {
				name = "event"
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
			flusher.Flush()
		}
	}
}
