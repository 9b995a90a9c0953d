package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"wrapops/internal/actions"
	"wrapops/internal/notify"
)

const defaultPendingAge = 4 * time.Hour

type staleLister interface {
	ListStalePendingActions(ctx context.Context, olderThan time.Time, limit int) ([]actions.Action, error)
}

// Reminder emails a digest of stale pending actions on a cron schedule.
// Pending actions never expire on their own; a human is nudged instead.
type Reminder struct {
	store     staleLister
	mailer    notify.Mailer
	schedule  cron.Schedule
	Recipient string
	// PendingAge is how old a pending action must be before it counts
	// as stale.
	PendingAge time.Duration
	Log        *slog.Logger

	// Now is swappable in tests.
	Now func() time.Time
}

func NewReminder(store staleLister, mailer notify.Mailer, spec, recipient string, pendingAge time.Duration) (*Reminder, error) {
	if recipient == "" {
		return nil, errors.New("reminder recipient required")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	if pendingAge <= 0 {
		pendingAge = defaultPendingAge
	}
	return &Reminder{
		store:      store,
		mailer:     mailer,
		schedule:   schedule,
		Recipient:  recipient,
		PendingAge: pendingAge,
		Log:        slog.Default(),
		Now:        time.Now,
	}, nil
}

// Run fires RunOnce at each scheduled activation until ctx is done.
func (r *Reminder) Run(ctx context.Context) {
	for {
		next := r.schedule.Next(r.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := r.RunOnce(ctx); err != nil {
			r.Log.Warn("pending reminder sweep failed", "error", err)
		}
	}
}

// RunOnce emails one digest of stale pending actions. No stale actions
// means no email.
func (r *Reminder) RunOnce(ctx context.Context) error {
	cutoff := r.Now().Add(-r.PendingAge)
	stale, err := r.store.ListStalePendingActions(ctx, cutoff, 100)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<p>%d pending action(s) have waited over %s for a decision:</p><ul>", len(stale), r.PendingAge))
	for _, a := range stale {
		b.WriteString("<li>" + string(a.Type) + " " + a.ID)
		if a.Preview != "" {
			b.WriteString(": " + a.Preview)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	_, err = r.mailer.Send(ctx, notify.Message{
		To:      []string{r.Recipient},
		Subject: fmt.Sprintf("%d pending actions awaiting approval", len(stale)),
		HTML:    b.String(),
	})
	return err
}
