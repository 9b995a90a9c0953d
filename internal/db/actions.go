package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"wrapops/internal/actions"
)

// InsertAction persists a newly proposed action and returns its id.
// Status is whatever the gateway decided (pending or approved); everything
// after that goes through TransitionAction.
func (d *DB) InsertAction(ctx context.Context, a actions.Action) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	actionID := newID("act")
	payload := a.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO ai_actions(action_id, conversation_id, organization_id, action_type, status, payload_json, priority, preview, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, actionID, nullString(a.ConversationID), nullString(a.OrganizationID), string(a.Type), string(a.Status),
		[]byte(payload), string(a.Priority), nullString(a.Preview), a.CreatedBy, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return actionID, nil
}

func (d *DB) GetAction(ctx context.Context, actionID string) (*actions.Action, error) {
	var (
		conversationID sql.NullString
		organizationID sql.NullString
		actionType     string
		status         string
		payload        []byte
		priority       string
		preview        sql.NullString
		createdBy      string
		createdAt      time.Time
		resolvedAt     sql.NullTime
	)
	row := d.conn.QueryRowContext(ctx, `
		SELECT conversation_id, organization_id, action_type, status, payload_json, priority, preview, created_by, created_at, resolved_at
		FROM ai_actions WHERE action_id=$1
	`, actionID)
	if err := row.Scan(&conversationID, &organizationID, &actionType, &status, &payload, &priority, &preview, &createdBy, &createdAt, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a := &actions.Action{
		ID:        actionID,
		Type:      actions.Type(actionType),
		Status:    actions.Status(status),
		Payload:   payload,
		Priority:  actions.Priority(priority),
		CreatedBy: createdBy,
		CreatedAt: createdAt,
	}
	if conversationID.Valid {
		a.ConversationID = conversationID.String
	}
	if organizationID.Valid {
		a.OrganizationID = organizationID.String
	}
	if preview.Valid {
		a.Preview = preview.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return a, nil
}

// TransitionAction applies a conditional status update: the row only moves
// when it is still in the expected prior state. Returns false when another
// writer got there first, which callers treat as a no-op.
func (d *DB) TransitionAction(ctx context.Context, actionID string, from, to actions.Status) (bool, error) {
	if actionID == "" {
		return false, errors.New("action id required")
	}
	var resolvedAt any
	if actions.Terminal(to) {
		resolvedAt = time.Now().UTC()
	}
	result, err := d.conn.ExecContext(ctx, `
		UPDATE ai_actions SET status=$1, resolved_at=COALESCE($2, resolved_at)
		WHERE action_id=$3 AND status=$4
	`, string(to), resolvedAt, actionID, string(from))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListActionsByStatus returns decoded actions for the executor.
func (d *DB) ListActionsByStatus(ctx context.Context, status string, limit int) ([]actions.Action, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'action_id', action_id,
			'conversation_id', conversation_id,
			'organization_id', organization_id,
			'action_type', action_type,
			'status', status,
			'payload', payload_json,
			'priority', priority,
			'preview', preview,
			'created_by', created_by,
			'created_at', created_at
		) ORDER BY created_at
	), '[]'::jsonb)
	FROM (
		SELECT * FROM ai_actions WHERE status=$1 ORDER BY created_at LIMIT $2
	) AS matched`
	row := d.conn.QueryRowContext(ctx, query, status, limit)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	var list []actions.Action
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListActions returns the raw JSON list for the web surface, optionally
// filtered by status and conversation.
func (d *DB) ListActions(ctx context.Context, conversationID, status string, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'action_id', action_id,
			'conversation_id', conversation_id,
			'action_type', action_type,
			'status', status,
			'payload', payload_json,
			'priority', priority,
			'preview', preview,
			'created_by', created_by,
			'created_at', created_at,
			'resolved_at', resolved_at
		) ORDER BY created_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT * FROM ai_actions
		WHERE ($1 = '' OR conversation_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	) AS matched`
	row := d.conn.QueryRowContext(ctx, query, conversationID, status, limit, offset)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountStalePending reports pending actions older than the cutoff, grouped
// as a JSON list for the reminder digest.
func (d *DB) ListStalePendingActions(ctx context.Context, olderThan time.Time, limit int) ([]actions.Action, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'action_id', action_id,
			'conversation_id', conversation_id,
			'action_type', action_type,
			'status', status,
			'priority', priority,
			'preview', preview,
			'created_by', created_by,
			'created_at', created_at
		) ORDER BY created_at
	), '[]'::jsonb)
	FROM (
		SELECT * FROM ai_actions WHERE status='pending' AND created_at < $1
		ORDER BY created_at LIMIT $2
	) AS stale`
	row := d.conn.QueryRowContext(ctx, query, olderThan.UTC(), limit)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	var list []actions.Action
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, err
	}
	return list, nil
}
