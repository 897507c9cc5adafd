package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/023a424/agentflow/internal/expressions"
	"github.com/023a424/agentflow/pkg/schema"
)

// NodeNameCustomFunction is the logical name of the custom-function node.
const NodeNameCustomFunction = "customFunctionAgentflow"

// CustomFunctionNode evaluates an authored expression against the node
// input and runtime state. An optional stateKey stores the result back into
// the runtime state.
type CustomFunctionNode struct {
	Engine *expressions.ExprEngine
}

func (n *CustomFunctionNode) Name() string        { return NodeNameCustomFunction }
func (n *CustomFunctionNode) Description() string { return "Evaluate a custom expression" }

func (n *CustomFunctionNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	expression := inputString(data, "expression")
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeNodeExecution, "custom function node has no expression configured").WithNode(data.ID)
	}

	scope := map[string]any{
		"input": asMap(input),
		"state": params.State,
		"form":  params.Form,
		"vars":  params.Variables,
	}

	result, err := n.Engine.Evaluate(ctx, expression, scope)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNodeExecution,
			"evaluate expression: %s", err.Error()).WithNode(data.ID).WithCause(err)
	}

	out := schema.NodeOutput{
		schema.FieldOutput: map[string]any{
			schema.FieldContent: stringifyResult(result),
			"result":            result,
		},
	}

	if stateKey := inputString(data, "stateKey"); stateKey != "" {
		state := make(map[string]any, len(params.State)+1)
		for k, v := range params.State {
			state[k] = v
		}
		state[stateKey] = result
		out[schema.FieldState] = state
	}
	return out, nil
}

func stringifyResult(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
