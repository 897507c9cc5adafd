package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeBadInput            = "BAD_INPUT"
	ErrCodeStartInput          = "START_INPUT_ERROR"
	ErrCodeNodeExecution       = "NODE_EXECUTION_ERROR"
	ErrCodeResolve             = "RESOLVE_ERROR"
	ErrCodeExpression          = "EXPRESSION_ERROR"
	ErrCodeAborted             = "ABORTED"
	ErrCodeIterationLimit      = "ITERATION_LIMIT"
	ErrCodeInvalidResume       = "INVALID_RESUME"
	ErrCodeNodeNotInCheckpoint = "NODE_NOT_IN_CHECKPOINT"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeStore               = "STORE_ERROR"
)

// FlowError is the structured error type for all engine operations.
type FlowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowError.
func NewError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// NewErrorf creates a new FlowError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *FlowError) WithNode(nodeID string) *FlowError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}
