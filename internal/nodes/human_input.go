package nodes

import (
	"context"

	"github.com/023a424/agentflow/pkg/schema"
)

// HumanInputNode pauses a flow for approval. The engine stops the run when
// no human input is supplied; when the run is resumed with input, the node
// routes the proceed/reject branches and surfaces the reviewer's feedback.
type HumanInputNode struct{}

func (n *HumanInputNode) Name() string        { return schema.NodeNameHumanInput }
func (n *HumanInputNode) Description() string { return "Pause for human approval" }

func (n *HumanInputNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	if params.HumanInput == nil {
		// First pass: describe what is being approved. The engine turns
		// this into a STOPPED checkpoint entry with an action descriptor.
		description := inputString(data, "description")
		if description == "" {
			description = "Review the flow output and choose how to proceed."
		}
		return schema.NodeOutput{
			schema.FieldOutput: map[string]any{
				schema.FieldContent: description,
			},
		}, nil
	}

	proceed := params.HumanInput.Type != schema.HumanInputReject
	content := params.HumanInput.Feedback
	if content == "" {
		if proceed {
			content = "Proceeded"
		} else {
			content = "Rejected"
		}
	}

	out := schema.NodeOutput{
		schema.FieldOutput: map[string]any{
			schema.FieldContent: content,
			schema.FieldConditions: []any{
				map[string]any{"type": schema.HumanInputProceed, "isFullfilled": proceed},
				map[string]any{"type": schema.HumanInputReject, "isFullfilled": !proceed},
			},
		},
	}
	if params.HumanInput.Feedback != "" {
		out[schema.FieldChatHistory] = []any{
			map[string]any{"role": "user", "content": params.HumanInput.Feedback},
		}
	}
	return out, nil
}
