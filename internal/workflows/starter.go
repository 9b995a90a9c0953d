package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/client"

	"wrapops/internal/actions"
)

type TemporalStarter struct {
	Client    client.Client
	TaskQueue string
}

// StartExecution launches one workflow per approved action. The
// workflow id is derived from the action id so a duplicate start of
// the same action is rejected by the server.
func (s *TemporalStarter) StartExecution(ctx context.Context, action actions.Action) (string, error) {
	if s == nil || s.Client == nil {
		return "", errors.New("temporal client required")
	}
	if action.ID == "" {
		return "", errors.New("action id required")
	}
	opts := client.StartWorkflowOptions{
		ID:        "action-" + action.ID,
		TaskQueue: s.TaskQueue,
	}
	run, err := s.Client.ExecuteWorkflow(ctx, opts, ActionExecutionWorkflow, ActionExecutionInput{Action: action})
	if err != nil {
		return "", err
	}
	return run.GetID(), nil
}
