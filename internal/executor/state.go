package executor

import "fmt"

// State is the lifecycle position of one task within a run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped, StateCanceled:
		return true
	}
	return false
}

// UpToDate reports whether the task's targets may be considered current.
func (s State) UpToDate() bool {
	return s == StateSucceeded || s == StateSkipped
}

// Pending tasks either are found clean, start running, are blocked by a
// failed prerequisite or are never dispatched. Running tasks end in success
// or failure only.
func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateSkipped || to == StateFailed || to == StateCanceled
	case StateRunning:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}

// TransitionError reports an invalid state change.
type TransitionError struct {
	TaskID string
	From   State
	To     State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.TaskID, e.From, e.To)
}
