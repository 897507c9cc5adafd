package nodes

import (
	"context"

	"github.com/023a424/agentflow/pkg/schema"
)

// NodeNameDirectReply is the logical name of the direct-reply node.
const NodeNameDirectReply = "directReplyAgentflow"

// DirectReplyNode surfaces a resolved message as the node's content and
// appends it to the chat history.
type DirectReplyNode struct{}

func (n *DirectReplyNode) Name() string        { return NodeNameDirectReply }
func (n *DirectReplyNode) Description() string { return "Reply with a fixed, resolved message" }

func (n *DirectReplyNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	message := inputString(data, "message")
	return schema.NodeOutput{
		schema.FieldOutput: map[string]any{
			schema.FieldContent: message,
		},
		schema.FieldChatHistory: []any{
			map[string]any{"role": "assistant", "content": message},
		},
	}, nil
}
