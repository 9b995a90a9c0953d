package web

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventsSSERejectsPost(t *testing.T) {
	s, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestEventsSSEStream(t *testing.T) {
	s, _, _, _ := newTestServer()
	srv := httptest.NewServer(s.Mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/events?conversation_id=conv_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("preamble: %v", err)
	}
	if !strings.HasPrefix(line, ":ok") {
		t.Fatalf("preamble: %q", line)
	}

	// Publish until the subscriber is registered and picks it up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(10 * time.Millisecond):
				s.emit("action.updated", map[string]string{"action_id": "act_1"}, "conv_1")
			}
		}
	}()

	deadline := time.After(5 * time.Second)
	lines := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data:") {
				lines <- line
				return
			}
		}
	}()

	select {
	case line := <-lines:
		if !strings.Contains(line, "act_1") {
			t.Fatalf("data line: %q", line)
		}
	case <-deadline:
		t.Fatalf("no event received")
	}
}
