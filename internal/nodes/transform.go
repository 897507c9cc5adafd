package nodes

import (
	"context"

	"github.com/023a424/agentflow/internal/expressions"
	"github.com/023a424/agentflow/pkg/schema"
)

// NodeNameTransform is the logical name of the data-transform node.
const NodeNameTransform = "transformAgentflow"

// TransformNode reshapes its combined input with a jq expression.
type TransformNode struct {
	Engine *expressions.GoJQEngine
}

func (n *TransformNode) Name() string        { return NodeNameTransform }
func (n *TransformNode) Description() string { return "Reshape input data with jq" }

func (n *TransformNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	expression := inputString(data, "expression")
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeNodeExecution, "transform node has no expression configured").WithNode(data.ID)
	}

	scope := map[string]any{
		"input": asMap(input),
		"state": params.State,
	}

	result, err := n.Engine.Evaluate(ctx, expression, scope)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNodeExecution,
			"evaluate transform: %s", err.Error()).WithNode(data.ID).WithCause(err)
	}

	return schema.NodeOutput{
		schema.FieldOutput: map[string]any{
			schema.FieldContent: stringifyResult(result),
			"json":              result,
		},
	}, nil
}
