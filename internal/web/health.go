package web

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	checks := map[string]string{}
	ok := true

	if s == nil || s.Store == nil {
		ok = false
		checks["db"] = "unavailable"
	} else if s.DBConn != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DBConn.PingContext(ctx); err != nil {
			ok = false
			checks["db"] = err.Error()
		} else {
			checks["db"] = "ok"
		}
	} else {
		checks["db"] = "unknown"
	}

	if ok {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	if data, err := marshalJSON(map[string]any{"status": "unavailable", "checks": checks}); err == nil {
		_, _ = w.Write(data)
		return
	}
	_, _ = w.Write([]byte(`{"status":"unavailable"}`))
}
