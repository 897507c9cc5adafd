package store

import (
	"encoding/json"
	"time"

	"github.com/023a424/agentflow/pkg/schema"
)

// Execution is the persisted record of one flow run. ExecutionData is the
// serialized checkpoint; it is rewritten on every terminal transition and
// on human-input stop.
type Execution struct {
	ID            string                 `json:"id"`
	AgentflowID   string                 `json:"agentflowId"`
	SessionID     string                 `json:"sessionId"`
	Status        schema.ExecutionStatus `json:"state"`
	ExecutionData []schema.ExecutedData  `json:"executionData"`
	CreatedDate   time.Time              `json:"createdDate"`
	UpdatedDate   time.Time              `json:"updatedDate"`
	StoppedDate   *time.Time             `json:"stoppedDate,omitempty"`
}

// ExecutionUpdate specifies mutable fields of an execution. Nil fields are
// left unchanged; ExecutionData is replaced when non-nil.
type ExecutionUpdate struct {
	Status        *schema.ExecutionStatus
	ExecutionData []schema.ExecutedData
	StoppedDate   *time.Time
}

// ExecutionFilter specifies criteria for listing executions.
type ExecutionFilter struct {
	AgentflowID string
	SessionID   string
	Status      *schema.ExecutionStatus
	Before      *time.Time // match executions last updated before this instant
	Limit       int
}

// Chat message roles written by the engine.
const (
	RoleUserMessage = "userMessage"
	RoleAPIMessage  = "apiMessage"
)

// ChatMessage is one persisted chat turn for a session.
type ChatMessage struct {
	ID              string          `json:"id"`
	Role            string          `json:"role"`
	AgentflowID     string          `json:"chatflowid"`
	ChatID          string          `json:"chatId"`
	SessionID       string          `json:"sessionId"`
	Content         string          `json:"content"`
	SourceDocuments json.RawMessage `json:"sourceDocuments,omitempty"`
	UsedTools       json.RawMessage `json:"usedTools,omitempty"`
	FileAnnotations json.RawMessage `json:"fileAnnotations,omitempty"`
	Artifacts       json.RawMessage `json:"artifacts,omitempty"`
	Action          json.RawMessage `json:"action,omitempty"`
	ExecutionID     string          `json:"executionId,omitempty"`
	CreatedDate     time.Time       `json:"createdDate"`
}

// Variable is a globally scoped variable exposed to flows under $vars.
type Variable struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Value       string    `json:"value"`
	Type        string    `json:"type"` // "static" | "runtime"
	CreatedDate time.Time `json:"createdDate"`
	UpdatedDate time.Time `json:"updatedDate"`
}
