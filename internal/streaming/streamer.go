package streaming

import (
	"context"

	"github.com/023a424/agentflow/pkg/schema"
)

// FlowStreamer is the engine-facing sink for one flow execution. Every
// emission is fire-and-forget: publish errors are swallowed so a
// disconnected client never becomes an engine error. Emissions survive
// caller cancellation so a terminated run still streams its final events.
type FlowStreamer struct {
	hub         EventHub
	chatID      string
	executionID string
}

// NewFlowStreamer binds a hub to one (chatID, executionID) pair.
func NewFlowStreamer(hub EventHub, chatID, executionID string) *FlowStreamer {
	return &FlowStreamer{hub: hub, chatID: chatID, executionID: executionID}
}

// NodeEvent emits a per-node transition ({nodeId, nodeLabel, status, error?}).
func (s *FlowStreamer) NodeEvent(ctx context.Context, nodeID, nodeLabel string, status schema.ExecutionStatus, errMsg string) {
	if s == nil || s.hub == nil {
		return
	}
	_ = s.hub.Publish(context.WithoutCancel(ctx), StreamEvent{
		ChatID:      s.chatID,
		ExecutionID: s.executionID,
		EventType:   schema.EventNextAgentFlow,
		Payload: schema.NodeEventPayload{
			NodeID:    nodeID,
			NodeLabel: nodeLabel,
			Status:    status,
			Error:     errMsg,
		},
	})
}

// Checkpoint emits the full checkpoint snapshot, scrubbed of credential keys.
func (s *FlowStreamer) Checkpoint(ctx context.Context, checkpoint []schema.ExecutedData) {
	if s == nil || s.hub == nil {
		return
	}
	_ = s.hub.Publish(context.WithoutCancel(ctx), StreamEvent{
		ChatID:      s.chatID,
		ExecutionID: s.executionID,
		EventType:   schema.EventAgentFlowExecutedData,
		Payload:     ScrubCheckpoint(checkpoint),
	})
}

// FlowStatus emits the flow-level status.
func (s *FlowStreamer) FlowStatus(ctx context.Context, status schema.ExecutionStatus) {
	if s == nil || s.hub == nil {
		return
	}
	_ = s.hub.Publish(context.WithoutCancel(ctx), StreamEvent{
		ChatID:      s.chatID,
		ExecutionID: s.executionID,
		EventType:   schema.EventAgentFlow,
		Payload:     schema.FlowEventPayload{Status: status},
	})
}

// Action emits a human-input action descriptor on pause.
func (s *FlowStreamer) Action(ctx context.Context, action *schema.HumanInputAction) {
	if s == nil || s.hub == nil || action == nil {
		return
	}
	_ = s.hub.Publish(context.WithoutCancel(ctx), StreamEvent{
		ChatID:      s.chatID,
		ExecutionID: s.executionID,
		EventType:   schema.EventAction,
		Payload:     action,
	})
}
