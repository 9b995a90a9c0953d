package db

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Task struct {
	TaskID         string     `json:"task_id"`
	Title          string     `json:"title"`
	AssignedTo     string     `json:"assigned_to"`
	RevenueImpact  string     `json:"revenue_impact"`
	Status         string     `json:"status"`
	CreatedBy      string     `json:"created_by"`
	ConversationID string     `json:"conversation_id,omitempty"`
	QuoteID        string     `json:"quote_id,omitempty"`
	Customer       string     `json:"customer,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
}

// CreateTask persists a task row. Tasks are only ever created through the
// authorization gateway, which fills the defaults before calling here.
func (d *DB) CreateTask(ctx context.Context, task Task) (string, error) {
	if d == nil || d.conn == nil {
		return "", errors.New("db required")
	}
	if strings.TrimSpace(task.Title) == "" {
		return "", errors.New("title required")
	}
	if strings.TrimSpace(task.AssignedTo) == "" {
		return "", errors.New("assigned_to required")
	}
	taskID := newID("task")
	status := task.Status
	if status == "" {
		status = "pending"
	}
	impact := task.RevenueImpact
	if impact == "" {
		impact = "medium"
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO tasks(task_id, title, assigned_to, revenue_impact, status, created_by, conversation_id, quote_id, customer, notes, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, taskID, task.Title, task.AssignedTo, impact, status, task.CreatedBy,
		nullString(task.ConversationID), nullString(task.QuoteID), nullString(task.Customer),
		nullString(task.Notes), nullTime(task.DueDate), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return taskID, nil
}

func (d *DB) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	if taskID == "" {
		return errors.New("task id required")
	}
	_, err := d.conn.ExecContext(ctx, `
		UPDATE tasks SET status=$1 WHERE task_id=$2
	`, status, taskID)
	return err
}

func (d *DB) ListTasks(ctx context.Context, status string, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'task_id', task_id,
			'title', title,
			'assigned_to', assigned_to,
			'revenue_impact', revenue_impact,
			'status', status,
			'created_by', created_by,
			'conversation_id', conversation_id,
			'due_date', due_date,
			'created_at', created_at
		) ORDER BY created_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT * FROM tasks WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	) AS matched`
	row := d.conn.QueryRowContext(ctx, query, status, limit, offset)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}
