package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type AgentAlert struct {
	AlertType      string
	OrganizationID string
	OrderRef       string
	Customer       string
	EmailSentTo    string
	EmailSentAt    *time.Time
	TaskID         string
	TaskStatus     string
	Priority       string
	Metadata       json.RawMessage
}

// InsertAgentAlert writes the durable record of a surfaced anomaly. This is
// the dispatcher's source of truth for "did anyone ever hear about this",
// independent of whether email or task creation succeeded.
func (d *DB) InsertAgentAlert(ctx context.Context, alert AgentAlert) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	if strings.TrimSpace(alert.AlertType) == "" {
		return "", errors.New("alert type required")
	}
	alertID := newID("alert")
	taskStatus := alert.TaskStatus
	if taskStatus == "" {
		taskStatus = "none"
	}
	priority := alert.Priority
	if priority == "" {
		priority = "medium"
	}
	metadata := alert.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO agent_alerts(alert_id, alert_type, organization_id, order_ref, customer, email_sent_to, email_sent_at, task_id, task_status, priority, metadata_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, alertID, alert.AlertType, nullString(alert.OrganizationID), nullString(alert.OrderRef),
		nullString(alert.Customer), nullString(alert.EmailSentTo), nullTime(alert.EmailSentAt),
		nullString(alert.TaskID), taskStatus, priority, []byte(metadata), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return alertID, nil
}

// UpdateAgentAlertTaskStatus tracks the linked task as it resolves.
func (d *DB) UpdateAgentAlertTaskStatus(ctx context.Context, alertID, taskStatus string) error {
	if alertID == "" {
		return errors.New("alert id required")
	}
	_, err := d.conn.ExecContext(ctx, `
		UPDATE agent_alerts SET task_status=$1 WHERE alert_id=$2
	`, taskStatus, alertID)
	return err
}

func (d *DB) ListAgentAlerts(ctx context.Context, alertType string, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'alert_id', alert_id,
			'alert_type', alert_type,
			'order_ref', order_ref,
			'customer', customer,
			'email_sent_to', email_sent_to,
			'email_sent_at', email_sent_at,
			'task_id', task_id,
			'task_status', task_status,
			'priority', priority,
			'metadata', metadata_json,
			'created_at', created_at
		) ORDER BY created_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT * FROM agent_alerts WHERE ($1 = '' OR alert_type = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	) AS matched`
	row := d.conn.QueryRowContext(ctx, query, alertType, limit, offset)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}
