// Package workflows runs approved actions through Temporal when an
// orchestrator is deployed. The in-process executor poller and this
// workflow share the same claim/perform/receipt sequence.
package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"wrapops/internal/actions"
	"wrapops/internal/db"
)

type ActionExecutionInput struct {
	Action actions.Action
}

type PerformResult struct {
	Provider          string
	ProviderReceiptID string
}

// ActionExecutionWorkflow claims one approved action, performs it, and
// records the receipt. The perform activity never retries: a duplicate
// send is worse than a failed one.
func ActionExecutionWorkflow(ctx workflow.Context, input ActionExecutionInput) error {
	if input.Action.ID == "" {
		return errors.New("action id required")
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var claimed bool
	if err := workflow.ExecuteActivity(ctx, "ClaimAction", input.Action.ID).Get(ctx, &claimed); err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	sendCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var performed PerformResult
	performErr := workflow.ExecuteActivity(sendCtx, "PerformAction", input.Action).Get(sendCtx, &performed)

	receipt := db.Receipt{
		ActionID:        input.Action.ID,
		ConversationID:  input.Action.ConversationID,
		ActionType:      string(input.Action.Type),
		PayloadSnapshot: input.Action.Payload,
	}
	if performErr != nil {
		receipt.Status = "failed"
		receipt.Error = performErr.Error()
	} else {
		receipt.Status = "sent"
		receipt.Provider = performed.Provider
		receipt.ProviderReceiptID = performed.ProviderReceiptID
	}
	if err := workflow.ExecuteActivity(ctx, "RecordReceipt", receipt).Get(ctx, nil); err != nil {
		return err
	}
	if err := workflow.ExecuteActivity(ctx, "CompleteAction", input.Action.ID, performErr != nil).Get(ctx, nil); err != nil {
		return err
	}
	return performErr
}
