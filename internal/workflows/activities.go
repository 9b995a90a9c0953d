package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"wrapops/internal/actions"
	"wrapops/internal/db"
	"wrapops/internal/executor"
)

type Activities struct {
	Exec *executor.Executor
}

func (a *Activities) ClaimAction(ctx context.Context, actionID string) (bool, error) {
	if a.Exec == nil || a.Exec.Store == nil {
		return false, errors.New("executor required")
	}
	return a.Exec.Store.TransitionAction(ctx, actionID, actions.StatusApproved, actions.StatusExecuting)
}

func (a *Activities) PerformAction(ctx context.Context, action actions.Action) (PerformResult, error) {
	if a.Exec == nil {
		return PerformResult{}, errors.New("executor required")
	}
	provider, receiptID, err := a.Exec.Perform(ctx, action)
	if err != nil {
		return PerformResult{}, err
	}
	return PerformResult{Provider: provider, ProviderReceiptID: receiptID}, nil
}

func (a *Activities) RecordReceipt(ctx context.Context, receipt db.Receipt) error {
	if a.Exec == nil || a.Exec.Store == nil {
		return errors.New("executor required")
	}
	_, err := a.Exec.Store.InsertReceipt(ctx, receipt)
	return err
}

func (a *Activities) CompleteAction(ctx context.Context, actionID string, failed bool) error {
	if a.Exec == nil || a.Exec.Store == nil {
		return errors.New("executor required")
	}
	final := actions.StatusCompleted
	if failed {
		final = actions.StatusFailed
	}
	_, err := a.Exec.Store.TransitionAction(ctx, actionID, actions.StatusExecuting, final)
	return err
}

// Register wires the workflow and its activities onto a worker.
func Register(w worker.Worker, a *Activities) {
	w.RegisterWorkflow(ActionExecutionWorkflow)
	w.RegisterActivityWithOptions(a.ClaimAction, activity.RegisterOptions{Name: "ClaimAction"})
	w.RegisterActivityWithOptions(a.PerformAction, activity.RegisterOptions{Name: "PerformAction"})
	w.RegisterActivityWithOptions(a.RecordReceipt, activity.RegisterOptions{Name: "RecordReceipt"})
	w.RegisterActivityWithOptions(a.CompleteAction, activity.RegisterOptions{Name: "CompleteAction"})
}
