// Package executor performs approved actions against the real world and
// writes the execution receipts. It is the only writer of the receipt
// ledger and the only component allowed to claim an action succeeded.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wrapops/internal/actions"
	"wrapops/internal/db"
	"wrapops/internal/gateway"
	"wrapops/internal/metrics"
	"wrapops/internal/notify"
)

type store interface {
	ListActionsByStatus(ctx context.Context, status string, limit int) ([]actions.Action, error)
	TransitionAction(ctx context.Context, actionID string, from, to actions.Status) (bool, error)
	InsertReceipt(ctx context.Context, receipt db.Receipt) (string, error)
}

type taskRouter interface {
	Route(ctx context.Context, req gateway.RouteRequest) gateway.RouteResult
}

type Executor struct {
	Store     store
	Mailer    notify.Mailer
	Messenger notify.Messenger
	Replier   notify.ThreadReplier
	Router    taskRouter
	// RequesterID is the identity the executor presents to the gateway
	// when an approved action creates a task.
	RequesterID string
	// ContentOwner receives tasks spawned from content requests.
	ContentOwner string

	PollInterval time.Duration
	MaxBatch     int
	Log          *slog.Logger
	Now          func() time.Time
}

func (e *Executor) Run(ctx context.Context) error {
	if e.PollInterval <= 0 {
		e.PollInterval = 10 * time.Second
	}
	for {
		if _, err := e.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.PollInterval):
		}
	}
}

// RunOnce executes one batch of approved actions. Returns how many
// actions this instance actually claimed and ran.
func (e *Executor) RunOnce(ctx context.Context) (int, error) {
	if e.Store == nil {
		return 0, errors.New("store required")
	}
	if e.Log == nil {
		e.Log = slog.Default()
	}
	batch := e.MaxBatch
	if batch <= 0 {
		batch = 20
	}
	approved, err := e.Store.ListActionsByStatus(ctx, string(actions.StatusApproved), batch)
	if err != nil {
		return 0, err
	}
	executed := 0
	for _, action := range approved {
		ran, err := e.Execute(ctx, action)
		if err != nil {
			e.Log.Error("action execution errored", "action_id", action.ID, "error", err)
		}
		if ran {
			executed++
		}
	}
	return executed, nil
}

// Execute claims one approved action and performs it. A false return
// with nil error means another executor claimed it first; stale
// approvals of already-resolved actions no-op the same way.
func (e *Executor) Execute(ctx context.Context, action actions.Action) (bool, error) {
	claimed, err := e.Store.TransitionAction(ctx, action.ID, actions.StatusApproved, actions.StatusExecuting)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	provider, providerReceiptID, performErr := e.perform(ctx, action)

	receipt := db.Receipt{
		ActionID:        action.ID,
		ConversationID:  action.ConversationID,
		ActionType:      string(action.Type),
		Provider:        provider,
		PayloadSnapshot: action.Payload,
	}
	final := actions.StatusCompleted
	result := "completed"
	if performErr != nil {
		receipt.Status = "failed"
		receipt.Error = performErr.Error()
		final = actions.StatusFailed
		result = "failed"
	} else {
		receipt.Status = "sent"
		receipt.ProviderReceiptID = providerReceiptID
	}
	if _, err := e.Store.InsertReceipt(ctx, receipt); err != nil {
		e.Log.Error("receipt write failed", "action_id", action.ID, "error", err)
	}

	moved, err := e.Store.TransitionAction(ctx, action.ID, actions.StatusExecuting, final)
	if err != nil {
		return true, err
	}
	if !moved {
		e.Log.Warn("executing action moved underneath us", "action_id", action.ID)
	}
	metrics.ExecutionsTotal.WithLabelValues(string(action.Type), result).Inc()
	if performErr != nil {
		return true, performErr
	}
	return true, nil
}

// Perform runs the real-world side effect for one action without
// touching its state. The workflow runtime drives state separately.
func (e *Executor) Perform(ctx context.Context, action actions.Action) (string, string, error) {
	return e.perform(ctx, action)
}

// perform runs the real-world side effect for one action. One attempt,
// no retries: a failure is terminal and lands in the receipt.
func (e *Executor) perform(ctx context.Context, action actions.Action) (string, string, error) {
	payload, err := actions.DecodePayload(action.Type, action.Payload)
	if err != nil {
		return "", "", err
	}
	switch p := payload.(type) {
	case actions.DMSendPayload:
		if e.Messenger == nil {
			return "slack", "", errors.New("no messenger configured")
		}
		id, err := e.Messenger.SendDM(ctx, p.Recipient, p.Body)
		return "slack", id, err
	case actions.EmailSendPayload:
		if e.Mailer == nil {
			return "email", "", errors.New("no mailer configured")
		}
		id, err := e.Mailer.Send(ctx, notify.Message{To: p.To, CC: p.CC, Subject: p.Subject, HTML: p.HTML})
		return "email", id, err
	case actions.WebsiteReplyPayload:
		if e.Replier == nil {
			return "website", "", errors.New("no website client configured")
		}
		id, err := e.Replier.Reply(ctx, p.ThreadID, p.Body)
		return "website", id, err
	case actions.CreateTaskPayload:
		id, err := e.routeTask(ctx, action, p.Title, p.AssignedTo, p.RevenueImpact, p.DueDate, p.Notes)
		return "gateway", id, err
	case actions.ContentRequestPayload:
		title := "Content request (" + p.Kind + "): " + p.Brief
		id, err := e.routeTask(ctx, action, title, e.ContentOwner, "", "", "")
		return "gateway", id, err
	}
	return "", "", fmt.Errorf("no executor for action type %s", action.Type)
}

func (e *Executor) routeTask(ctx context.Context, action actions.Action, title, target, impact, dueDate, notes string) (string, error) {
	if e.Router == nil {
		return "", errors.New("no task router configured")
	}
	routed := e.Router.Route(ctx, gateway.RouteRequest{
		Action:      gateway.ActionCreateTask,
		RequestedBy: e.RequesterID,
		Target:      target,
		Context: gateway.RouteContext{
			Description:    title,
			RevenueImpact:  impact,
			DueDate:        dueDate,
			Notes:          notes,
			ConversationID: action.ConversationID,
		},
	})
	if !routed.Success {
		return "", errors.New(routed.Error)
	}
	return routed.TaskID, nil
}
