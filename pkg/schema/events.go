package schema

// Stream event types emitted during flow execution, keyed by chat ID.
const (
	// EventNextAgentFlow carries {nodeId, nodeLabel, status, error?} for a
	// single node transition.
	EventNextAgentFlow = "nextAgentFlow"

	// EventAgentFlowExecutedData carries the full checkpoint snapshot.
	EventAgentFlowExecutedData = "agentFlowExecutedData"

	// EventAgentFlow carries the flow-level status.
	EventAgentFlow = "agentFlow"

	// EventAction carries a HumanInputAction descriptor on pause.
	EventAction = "action"
)

// NodeEventPayload is the wire payload of an EventNextAgentFlow emission.
type NodeEventPayload struct {
	NodeID    string          `json:"nodeId"`
	NodeLabel string          `json:"nodeLabel"`
	Status    ExecutionStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// FlowEventPayload is the wire payload of an EventAgentFlow emission.
type FlowEventPayload struct {
	Status ExecutionStatus `json:"status"`
}
