package nodes

import (
	"context"

	"github.com/023a424/agentflow/pkg/schema"
)

// LoopNode re-enqueues an earlier node, bounded by maxLoopCount. The
// scheduler enforces the ceiling; the node only names the target.
type LoopNode struct{}

func (n *LoopNode) Name() string        { return schema.NodeNameLoop }
func (n *LoopNode) Description() string { return "Loop back to an earlier node" }

func (n *LoopNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	target := inputString(data, "loopBackToNode")
	if target == "" {
		return nil, schema.NewError(schema.ErrCodeNodeExecution, "loop node has no loopBackToNode configured").WithNode(data.ID)
	}
	maxLoop := inputInt(data, "maxLoopCount", 0)

	out := map[string]any{
		schema.FieldNodeID:  target,
		schema.FieldContent: "Looping back to " + target,
	}
	if maxLoop > 0 {
		out[schema.FieldMaxLoop] = maxLoop
	}
	return schema.NodeOutput{schema.FieldOutput: out}, nil
}
