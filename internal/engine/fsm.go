package engine

import "github.com/023a424/agentflow/pkg/schema"

// ValidExecutionTransitions defines the allowed lifecycle transitions for
// an execution. STOPPED is the only terminal state that can return to
// INPROGRESS (resume with human input).
var ValidExecutionTransitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.StatusInProgress: {schema.StatusFinished, schema.StatusStopped, schema.StatusError, schema.StatusTerminated},
	schema.StatusStopped:    {schema.StatusInProgress},
	schema.StatusFinished:   {},
	schema.StatusError:      {},
	schema.StatusTerminated: {},
}

// CanTransition reports whether from → to is an allowed transition.
func CanTransition(from, to schema.ExecutionStatus) bool {
	for _, allowed := range ValidExecutionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates an execution state transition.
func Transition(from, to schema.ExecutionStatus) error {
	if !CanTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid execution transition: %s -> %s", from, to).
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}
	return nil
}
