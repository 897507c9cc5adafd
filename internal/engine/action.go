package engine

import (
	"github.com/google/uuid"

	"github.com/023a424/agentflow/pkg/schema"
)

// buildHumanInputAction synthesizes the approve/reject prompt surfaced to
// the caller when a human-input node pauses the flow. The mapping keys the
// responses back to the paused node so a resume call can name it.
func buildHumanInputAction(nodeID, nodeLabel string) *schema.HumanInputAction {
	return &schema.HumanInputAction{
		ID: uuid.New().String(),
		Mapping: map[string]any{
			"approve":     schema.HumanInputProceed,
			"reject":      schema.HumanInputReject,
			"startNodeId": nodeID,
		},
		Elements: []schema.ActionElement{
			{Type: "agentflow-button", Label: "Proceed"},
			{Type: "agentflow-button", Label: "Reject"},
		},
		Data: map[string]any{
			"nodeId":    nodeID,
			"nodeLabel": nodeLabel,
		},
	}
}
