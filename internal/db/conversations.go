package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type ConversationFlags struct {
	AIPaused         bool `json:"ai_paused"`
	ApprovalRequired bool `json:"approval_required"`
	AutopilotAllowed bool `json:"autopilot_allowed"`
}

type Conversation struct {
	ConversationID string            `json:"conversation_id"`
	OrganizationID string            `json:"organization_id,omitempty"`
	Channel        string            `json:"channel"`
	CustomerName   string            `json:"customer_name,omitempty"`
	QuoteID        string            `json:"quote_id,omitempty"`
	Flags          ConversationFlags `json:"flags"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (d *DB) scanConversation(row rowScanner, conversationID string) (*Conversation, error) {
	var (
		orgID     sql.NullString
		channel   string
		customer  sql.NullString
		quoteID   sql.NullString
		flags     ConversationFlags
		createdAt time.Time
	)
	if err := row.Scan(&orgID, &channel, &customer, &quoteID, &flags.AIPaused, &flags.ApprovalRequired, &flags.AutopilotAllowed, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv := &Conversation{
		ConversationID: conversationID,
		Channel:        channel,
		Flags:          flags,
		CreatedAt:      createdAt,
	}
	if orgID.Valid {
		conv.OrganizationID = orgID.String
	}
	if customer.Valid {
		conv.CustomerName = customer.String
	}
	if quoteID.Valid {
		conv.QuoteID = quoteID.String
	}
	return conv, nil
}

func (d *DB) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id required")
	}
	row := d.conn.QueryRowContext(ctx, `
		SELECT organization_id, channel, customer_name, quote_id, ai_paused, approval_required, autopilot_allowed, created_at
		FROM conversations WHERE conversation_id=$1
	`, conversationID)
	return d.scanConversation(row, conversationID)
}

// GetConversationByQuote is the secondary lookup key the approval surface
// falls back to when an action carries a quote reference but no thread id.
func (d *DB) GetConversationByQuote(ctx context.Context, quoteID string) (*Conversation, error) {
	if quoteID == "" {
		return nil, errors.New("quote id required")
	}
	var conversationID string
	row := d.conn.QueryRowContext(ctx, `
		SELECT conversation_id FROM conversations WHERE quote_id=$1 ORDER BY created_at DESC LIMIT 1
	`, quoteID)
	if err := row.Scan(&conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d.GetConversation(ctx, conversationID)
}

func (d *DB) GetConversationFlags(ctx context.Context, conversationID string) (ConversationFlags, error) {
	var flags ConversationFlags
	if conversationID == "" {
		return flags, errors.New("conversation id required")
	}
	row := d.conn.QueryRowContext(ctx, `
		SELECT ai_paused, approval_required, autopilot_allowed FROM conversations WHERE conversation_id=$1
	`, conversationID)
	if err := row.Scan(&flags.AIPaused, &flags.ApprovalRequired, &flags.AutopilotAllowed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return flags, ErrConversationNotFound
		}
		return flags, err
	}
	return flags, nil
}

var ErrConversationNotFound = errors.New("conversation not found")

// UpdateConversationFlags is only reachable from the human toggle on the
// control surface.
func (d *DB) UpdateConversationFlags(ctx context.Context, conversationID string, flags ConversationFlags) error {
	if conversationID == "" {
		return errors.New("conversation id required")
	}
	result, err := d.conn.ExecContext(ctx, `
		UPDATE conversations SET ai_paused=$1, approval_required=$2, autopilot_allowed=$3, updated_at=$4
		WHERE conversation_id=$5
	`, flags.AIPaused, flags.ApprovalRequired, flags.AutopilotAllowed, time.Now().UTC(), conversationID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (d *DB) CreateConversation(ctx context.Context, conv Conversation) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	conversationID := conv.ConversationID
	if conversationID == "" {
		conversationID = newID("conv")
	}
	channel := conv.Channel
	if channel == "" {
		channel = "email"
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO conversations(conversation_id, organization_id, channel, customer_name, quote_id, ai_paused, approval_required, autopilot_allowed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, conversationID, nullString(conv.OrganizationID), channel, nullString(conv.CustomerName), nullString(conv.QuoteID),
		conv.Flags.AIPaused, conv.Flags.ApprovalRequired, conv.Flags.AutopilotAllowed, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return conversationID, nil
}
