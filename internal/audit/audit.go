// Package audit provides the coarse-grained, best-effort audit trail that
// sits alongside the durable domain tables.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

type Event struct {
	Actor    any
	Action   string
	Decision string
	Context  any
	Note     string
}

type Writer interface {
	InsertAuditEvent(ctx context.Context, payload []byte) (string, error)
}

type Store struct {
	DB Writer
}

func NewWithDB(db Writer) *Store {
	return &Store{DB: db}
}

// Append records one audit event. A nil store or nil DB is a no-op so
// callers do not have to guard every call site.
func (s *Store) Append(ctx context.Context, ev Event) error {
	if s == nil || s.DB == nil {
		return nil
	}
	payload := map[string]any{
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
		"action":      ev.Action,
		"decision":    ev.Decision,
	}
	if ev.Actor != nil {
		payload["actor"] = ev.Actor
	}
	if ev.Context != nil {
		payload["context"] = ev.Context
	}
	if ev.Note != "" {
		payload["note"] = ev.Note
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.DB.InsertAuditEvent(ctx, data)
	return err
}
