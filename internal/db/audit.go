package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type auditPayload struct {
	OccurredAt string          `json:"occurred_at"`
	Actor      json.RawMessage `json:"actor"`
	Action     string          `json:"action"`
	Decision   string          `json:"decision"`
	Context    json.RawMessage `json:"context"`
	Note       string          `json:"note"`
}

func (d *DB) InsertAuditEvent(ctx context.Context, payload []byte) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	eventID := newID("audit")
	occurredAt := time.Now().UTC()
	action := "unknown"
	decision := "allow"
	actorJSON := []byte("{}")
	contextJSON := []byte("{}")
	note := ""
	if len(payload) > 0 {
		var data auditPayload
		if err := json.Unmarshal(payload, &data); err != nil {
			return "", err
		}
		if data.OccurredAt != "" {
			parsed, err := time.Parse(time.RFC3339, data.OccurredAt)
			if err != nil {
				return "", err
			}
			occurredAt = parsed
		}
		if data.Action != "" {
			action = data.Action
		}
		if data.Decision != "" {
			decision = data.Decision
		}
		if len(data.Actor) > 0 {
			actorJSON = data.Actor
		}
		if len(data.Context) > 0 {
			contextJSON = data.Context
		}
		note = data.Note
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO audit_events(event_id, occurred_at, actor_json, action, decision, context_json, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, eventID, occurredAt, actorJSON, action, decision, contextJSON, nullString(note))
	if err != nil {
		return "", err
	}
	return eventID, nil
}

func (d *DB) ListAuditEvents(ctx context.Context, action string, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'event_id', event_id,
			'occurred_at', occurred_at,
			'actor', actor_json,
			'action', action,
			'decision', decision,
			'context', context_json,
			'note', note
		) ORDER BY occurred_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT * FROM audit_events WHERE ($1 = '' OR action = $1)
		ORDER BY occurred_at DESC LIMIT $2 OFFSET $3
	) AS matched`
	row := d.conn.QueryRowContext(ctx, query, action, limit, offset)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}
