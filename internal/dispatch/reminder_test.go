package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wrapops/internal/actions"
)

type fakeStaleLister struct {
	stale  []actions.Action
	err    error
	cutoff time.Time
}

func (f *fakeStaleLister) ListStalePendingActions(ctx context.Context, olderThan time.Time, limit int) ([]actions.Action, error) {
	f.cutoff = olderThan
	return f.stale, f.err
}

func TestNewReminderValidation(t *testing.T) {
	if _, err := NewReminder(&fakeStaleLister{}, &fakeMailer{}, "0 * * * *", "", time.Hour); err == nil {
		t.Fatalf("expected recipient error")
	}
	if _, err := NewReminder(&fakeStaleLister{}, &fakeMailer{}, "not a cron", "jordan@wrapops.example", time.Hour); err == nil {
		t.Fatalf("expected schedule error")
	}
	r, err := NewReminder(&fakeStaleLister{}, &fakeMailer{}, "*/30 * * * *", "jordan@wrapops.example", 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if r.PendingAge != defaultPendingAge {
		t.Fatalf("pending age default: %v", r.PendingAge)
	}
}

func TestRunOnceSendsDigest(t *testing.T) {
	lister := &fakeStaleLister{stale: []actions.Action{
		{ID: "act_1", Type: actions.TypeDMSend, Preview: "DM to U123: hello"},
		{ID: "act_2", Type: actions.TypeEmailSend},
	}}
	mailer := &fakeMailer{}
	r, err := NewReminder(lister, mailer, "0 * * * *", "jordan@wrapops.example", 2*time.Hour)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !lister.cutoff.Equal(now.Add(-2 * time.Hour)) {
		t.Fatalf("cutoff: %v", lister.cutoff)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("emails: %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To[0] != "jordan@wrapops.example" {
		t.Fatalf("recipient: %v", msg.To)
	}
	if !strings.Contains(msg.HTML, "act_1") || !strings.Contains(msg.HTML, "act_2") {
		t.Fatalf("digest body: %s", msg.HTML)
	}
	if !strings.Contains(msg.Subject, "2 pending") {
		t.Fatalf("subject: %s", msg.Subject)
	}
}

func TestRunOnceNothingStale(t *testing.T) {
	mailer := &fakeMailer{}
	r, _ := NewReminder(&fakeStaleLister{}, mailer, "0 * * * *", "jordan@wrapops.example", time.Hour)
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("should not email an empty digest")
	}
}

func TestRunOnceListError(t *testing.T) {
	r, _ := NewReminder(&fakeStaleLister{err: errors.New("db down")}, &fakeMailer{}, "0 * * * *", "jordan@wrapops.example", time.Hour)
	if err := r.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	r, _ := NewReminder(&fakeStaleLister{}, &fakeMailer{}, "0 0 1 1 *", "jordan@wrapops.example", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on context cancel")
	}
}
