package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeWriter struct {
	payloads [][]byte
	err      error
}

func (f *fakeWriter) InsertAuditEvent(ctx context.Context, payload []byte) (string, error) {
	f.payloads = append(f.payloads, payload)
	return "audit_1", f.err
}

func TestAppend(t *testing.T) {
	writer := &fakeWriter{}
	store := NewWithDB(writer)
	err := store.Append(context.Background(), Event{
		Actor:    map[string]string{"id": "jordan_lee"},
		Action:   "action.approve",
		Decision: "allow",
		Context:  map[string]string{"action_id": "act_1"},
		Note:     "ok",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(writer.payloads) != 1 {
		t.Fatalf("payloads: %d", len(writer.payloads))
	}
	var decoded map[string]any
	if err := json.Unmarshal(writer.payloads[0], &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["action"] != "action.approve" || decoded["decision"] != "allow" {
		t.Fatalf("payload: %v", decoded)
	}
	if decoded["occurred_at"] == nil {
		t.Fatalf("missing occurred_at")
	}
}

func TestAppendNilStore(t *testing.T) {
	var store *Store
	if err := store.Append(context.Background(), Event{Action: "x"}); err != nil {
		t.Fatalf("nil store should no-op: %v", err)
	}
	empty := &Store{}
	if err := empty.Append(context.Background(), Event{Action: "x"}); err != nil {
		t.Fatalf("nil db should no-op: %v", err)
	}
}

func TestAppendWriterError(t *testing.T) {
	store := NewWithDB(&fakeWriter{err: errors.New("db down")})
	if err := store.Append(context.Background(), Event{Action: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}
