package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"wrapops/internal/actions"
)

func TestInsertAction(t *testing.T) {
	conn := &fakeConn{}
	d := newFakeDB(conn)
	id, err := d.InsertAction(context.Background(), actions.Action{
		ConversationID: "conv_1",
		Type:           actions.TypeEmailSend,
		Status:         actions.StatusPending,
		Payload:        json.RawMessage(`{"to":["a@b.co"],"subject":"s","html":"<p>x</p>"}`),
		Priority:       actions.PriorityMedium,
		CreatedBy:      "inbox_agent",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.HasPrefix(id, "act_") {
		t.Fatalf("id: %q", id)
	}
	if conn.execCalls != 1 {
		t.Fatalf("exec calls: %d", conn.execCalls)
	}
	if !strings.Contains(conn.execQueries[0], "INSERT INTO ai_actions") {
		t.Fatalf("query: %q", conn.execQueries[0])
	}
}

func TestInsertActionExecError(t *testing.T) {
	d := newFakeDB(&fakeConn{execErr: errTest})
	if _, err := d.InsertAction(context.Background(), actions.Action{Type: actions.TypeDMSend, CreatedBy: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetActionNotFound(t *testing.T) {
	d := newFakeDB(&fakeConn{})
	a, err := d.GetAction(context.Background(), "act_missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil action")
	}
}

func TestGetAction(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	conn := &fakeConn{row: fakeRow{values: []any{
		sql.NullString{String: "conv_1", Valid: true},
		sql.NullString{},
		"email_send",
		"pending",
		[]byte(`{"to":["a@b.co"]}`),
		"high",
		sql.NullString{String: "Email a@b.co", Valid: true},
		"inbox_agent",
		created,
		sql.NullTime{},
	}}}
	d := newFakeDB(conn)
	a, err := d.GetAction(context.Background(), "act_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a == nil {
		t.Fatalf("expected action")
	}
	if a.ConversationID != "conv_1" || a.Type != actions.TypeEmailSend || a.Status != actions.StatusPending {
		t.Fatalf("decoded wrong: %+v", a)
	}
	if a.Priority != actions.PriorityHigh || a.Preview != "Email a@b.co" {
		t.Fatalf("decoded wrong: %+v", a)
	}
	if a.ResolvedAt != nil {
		t.Fatalf("resolved_at should be nil")
	}
}

func TestTransitionActionMoved(t *testing.T) {
	conn := &fakeConn{affected: 1}
	d := newFakeDB(conn)
	moved, err := d.TransitionAction(context.Background(), "act_1", actions.StatusPending, actions.StatusApproved)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatalf("expected row to move")
	}
	query := conn.execQueries[0]
	if !strings.Contains(query, "AND status=$4") {
		t.Fatalf("transition must be conditional on prior status: %q", query)
	}
	args := conn.execArgs[0]
	if args[0] != "approved" || args[3] != "pending" {
		t.Fatalf("args: %v", args)
	}
}

func TestTransitionActionLostRace(t *testing.T) {
	conn := &fakeConn{zeroAffected: true}
	d := newFakeDB(conn)
	moved, err := d.TransitionAction(context.Background(), "act_1", actions.StatusPending, actions.StatusApproved)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved {
		t.Fatalf("expected no-op when row already moved")
	}
}

func TestTransitionActionTerminalSetsResolvedAt(t *testing.T) {
	conn := &fakeConn{}
	d := newFakeDB(conn)
	if _, err := d.TransitionAction(context.Background(), "act_1", actions.StatusExecuting, actions.StatusFailed); err != nil {
		t.Fatalf("transition: %v", err)
	}
	args := conn.execArgs[0]
	if args[1] == nil {
		t.Fatalf("terminal transition must set resolved_at")
	}
}

func TestTransitionActionNonTerminalLeavesResolvedAt(t *testing.T) {
	conn := &fakeConn{}
	d := newFakeDB(conn)
	if _, err := d.TransitionAction(context.Background(), "act_1", actions.StatusApproved, actions.StatusExecuting); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if conn.execArgs[0][1] != nil {
		t.Fatalf("non-terminal transition must not set resolved_at")
	}
}

func TestTransitionActionRequiresID(t *testing.T) {
	d := newFakeDB(&fakeConn{})
	if _, err := d.TransitionAction(context.Background(), "", actions.StatusPending, actions.StatusApproved); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListActionsByStatus(t *testing.T) {
	list := `[{"action_id":"act_1","action_type":"email_send","status":"approved","created_by":"inbox_agent"}]`
	conn := &fakeConn{row: fakeRow{values: []any{[]byte(list)}}}
	d := newFakeDB(conn)
	got, err := d.ListActionsByStatus(context.Background(), "approved", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "act_1" || got[0].Status != actions.StatusApproved {
		t.Fatalf("decoded: %+v", got)
	}
	if conn.lastArgs[0] != "approved" {
		t.Fatalf("args: %v", conn.lastArgs)
	}
}

func TestListActionsRawJSON(t *testing.T) {
	conn := &fakeConn{row: fakeRow{values: []any{[]byte(`[]`)}}}
	d := newFakeDB(conn)
	out, err := d.ListActions(context.Background(), "conv_1", "pending", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if string(out) != "[]" {
		t.Fatalf("out: %s", out)
	}
}

func TestListStalePendingActions(t *testing.T) {
	list := `[{"action_id":"act_9","status":"pending","created_by":"inbox_agent"}]`
	conn := &fakeConn{row: fakeRow{values: []any{[]byte(list)}}}
	d := newFakeDB(conn)
	got, err := d.ListStalePendingActions(context.Background(), time.Now().Add(-4*time.Hour), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "act_9" {
		t.Fatalf("decoded: %+v", got)
	}
}
