package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type Receipt struct {
	ActionID          string
	ConversationID    string
	ActionType        string
	Status            string
	Provider          string
	ProviderReceiptID string
	PayloadSnapshot   json.RawMessage
	Error             string
}

// InsertReceipt appends one execution receipt. The executor is the only
// caller; nothing ever updates or deletes a receipt.
func (d *DB) InsertReceipt(ctx context.Context, receipt Receipt) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	if strings.TrimSpace(receipt.ActionType) == "" {
		return "", errors.New("action type required")
	}
	switch receipt.Status {
	case "sent", "failed", "skipped":
	default:
		return "", errors.New("invalid receipt status: " + receipt.Status)
	}
	receiptID := newID("rcpt")
	snapshot := receipt.PayloadSnapshot
	if len(snapshot) == 0 {
		snapshot = []byte("{}")
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO execution_receipts(receipt_id, action_id, conversation_id, action_type, status, provider, provider_receipt_id, payload_snapshot, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, receiptID, nullString(receipt.ActionID), nullString(receipt.ConversationID), receipt.ActionType,
		receipt.Status, nullString(receipt.Provider), nullString(receipt.ProviderReceiptID),
		[]byte(snapshot), nullString(receipt.Error), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return receiptID, nil
}

func (d *DB) ListReceipts(ctx context.Context, conversationID string, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'receipt_id', receipt_id,
			'action_id', action_id,
			'conversation_id', conversation_id,
			'action_type', action_type,
			'status', status,
			'provider', provider,
			'provider_receipt_id', provider_receipt_id,
			'error', error,
			'created_at', created_at
		) ORDER BY created_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT * FROM execution_receipts WHERE ($1 = '' OR conversation_id = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	) AS matched`
	row := d.conn.QueryRowContext(ctx, query, conversationID, limit, offset)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}
