package store

import "context"

// Store defines the persistence layer contract for executions, chat
// messages, and variables. All implementations must be safe for concurrent
// use; isolation between flow runs is provided by (agentflowId, sessionId,
// chatId) keys.
type Store interface {
	// Executions
	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	UpdateExecution(ctx context.Context, id string, update ExecutionUpdate) error
	LatestExecution(ctx context.Context, agentflowID, sessionID string) (*Execution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)
	DeleteExecution(ctx context.Context, id string) error

	// Chat messages
	CreateChatMessage(ctx context.Context, msg *ChatMessage) error
	ListChatMessages(ctx context.Context, agentflowID, sessionID string) ([]*ChatMessage, error)
	// ClearLatestMessageAction clears the action field of the most recent
	// message for the session that has one populated.
	ClearLatestMessageAction(ctx context.Context, agentflowID, sessionID string) error

	// Variables
	UpsertVariable(ctx context.Context, v *Variable) error
	ListVariables(ctx context.Context) ([]*Variable, error)
	DeleteVariable(ctx context.Context, name string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
