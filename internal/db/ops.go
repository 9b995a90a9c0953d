package db

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Correction is an immutable record of a human correcting an AI mistake.
// The original action is never mutated.
type Correction struct {
	CorrectedBy    string
	Target         string
	Description    string
	Notes          string
	ConversationID string
}

func (d *DB) InsertCorrection(ctx context.Context, c Correction) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	if strings.TrimSpace(c.Description) == "" {
		return "", errors.New("description required")
	}
	correctionID := newID("corr")
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO ops_corrections(correction_id, corrected_by, target, description, notes, conversation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, correctionID, c.CorrectedBy, c.Target, c.Description, nullString(c.Notes), nullString(c.ConversationID), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return correctionID, nil
}

// Escalation is addressed to the fixed ops+founder authority pair. Writing
// it never notifies anyone; the dispatcher owns notification.
type Escalation struct {
	RaisedBy       string
	AddressedTo    string
	Description    string
	Customer       string
	QuoteID        string
	ConversationID string
}

func (d *DB) InsertEscalation(ctx context.Context, e Escalation) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	if strings.TrimSpace(e.Description) == "" {
		return "", errors.New("description required")
	}
	escalationID := newID("esc")
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO ops_escalations(escalation_id, raised_by, addressed_to, description, customer, quote_id, conversation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, escalationID, e.RaisedBy, e.AddressedTo, e.Description, nullString(e.Customer), nullString(e.QuoteID), nullString(e.ConversationID), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return escalationID, nil
}
