package actions

import "fmt"

type Event string

const (
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventExecute  Event = "execute"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
)

// ErrInvalidTransition is returned (wrapped) when an event is not legal from
// the current status. Callers treat it as "someone else got there first".
type ErrInvalidTransition struct {
	From  Status
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: %s from %s", e.Event, e.From)
}

// Transition is the single source of truth for the action lifecycle:
//
//	pending -> approved | rejected
//	approved -> executing
//	executing -> completed | failed
//
// rejected, completed and failed are terminal. Every write site routes
// through this table before touching storage.
func Transition(current Status, event Event) (Status, error) {
	switch event {
	case EventApprove:
		if current == StatusPending {
			return StatusApproved, nil
		}
	case EventReject:
		if current == StatusPending {
			return StatusRejected, nil
		}
	case EventExecute:
		if current == StatusApproved {
			return StatusExecuting, nil
		}
	case EventComplete:
		if current == StatusExecuting {
			return StatusCompleted, nil
		}
	case EventFail:
		if current == StatusExecuting {
			return StatusFailed, nil
		}
	default:
		return "", fmt.Errorf("unknown event: %s", event)
	}
	return "", &ErrInvalidTransition{From: current, Event: event}
}
