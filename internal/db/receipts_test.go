package db

import (
	"context"
	"strings"
	"testing"
)

func TestInsertReceipt(t *testing.T) {
	conn := &fakeConn{}
	d := newFakeDB(conn)
	id, err := d.InsertReceipt(context.Background(), Receipt{
		ActionID:          "act_1",
		ConversationID:    "conv_1",
		ActionType:        "email_send",
		Status:            "sent",
		Provider:          "mailer",
		ProviderReceiptID: "msg_42",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.HasPrefix(id, "rcpt_") {
		t.Fatalf("id: %q", id)
	}
	if !strings.Contains(conn.execQueries[0], "INSERT INTO execution_receipts") {
		t.Fatalf("query: %q", conn.execQueries[0])
	}
}

func TestInsertReceiptInvalidStatus(t *testing.T) {
	d := newFakeDB(&fakeConn{})
	if _, err := d.InsertReceipt(context.Background(), Receipt{ActionType: "email_send", Status: "done"}); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestInsertReceiptFailedWithError(t *testing.T) {
	conn := &fakeConn{}
	d := newFakeDB(conn)
	if _, err := d.InsertReceipt(context.Background(), Receipt{
		ActionType: "dm_send",
		Status:     "failed",
		Error:      "provider timeout",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	args := conn.execArgs[0]
	if args[8] != "provider timeout" {
		t.Fatalf("error column: %v", args[8])
	}
}

func TestInsertReceiptRequiresActionType(t *testing.T) {
	d := newFakeDB(&fakeConn{})
	if _, err := d.InsertReceipt(context.Background(), Receipt{Status: "sent"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListReceipts(t *testing.T) {
	conn := &fakeConn{row: fakeRow{values: []any{[]byte(`[{"receipt_id":"rcpt_1"}]`)}}}
	d := newFakeDB(conn)
	out, err := d.ListReceipts(context.Background(), "conv_1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(string(out), "rcpt_1") {
		t.Fatalf("out: %s", out)
	}
	if conn.lastArgs[0] != "conv_1" {
		t.Fatalf("args: %v", conn.lastArgs)
	}
}
