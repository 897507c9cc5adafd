package nodes

import (
	"context"
	"fmt"

	"github.com/023a424/agentflow/internal/expressions"
	"github.com/023a424/agentflow/pkg/schema"
)

// ConditionNode routes execution by evaluating authored CEL expressions.
// The node declares N conditions; the output carries N+1 entries where the
// final entry is the implicit else branch, fulfilled only when no declared
// condition matched.
type ConditionNode struct {
	Engine *expressions.CELEngine
}

func (n *ConditionNode) Name() string        { return schema.NodeNameCondition }
func (n *ConditionNode) Description() string { return "Route by CEL condition expressions" }

func (n *ConditionNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	declared, _ := data.Inputs["conditions"].([]any)
	if len(declared) == 0 {
		return nil, schema.NewError(schema.ErrCodeNodeExecution, "condition node has no conditions configured").WithNode(data.ID)
	}

	scope := map[string]any{
		"input": asMap(input),
		"state": params.State,
		"form":  params.Form,
		"vars":  params.Variables,
	}

	conditions := make([]any, 0, len(declared)+1)
	matched := -1
	for i, item := range declared {
		cond, _ := item.(map[string]any)
		expression, _ := cond["expression"].(string)
		if expression == "" {
			return nil, schema.NewErrorf(schema.ErrCodeNodeExecution,
				"condition %d has no expression", i).WithNode(data.ID)
		}
		result, err := n.Engine.Evaluate(ctx, expression, scope)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeNodeExecution,
				"evaluate condition %d: %s", i, err.Error()).WithNode(data.ID).WithCause(err)
		}
		fulfilled := truthy(result)
		if fulfilled && matched == -1 {
			matched = i
		}
		conditions = append(conditions, map[string]any{
			"expression":   expression,
			"isFullfilled": fulfilled,
		})
	}

	// Implicit else branch.
	conditions = append(conditions, map[string]any{
		"isFullfilled": matched == -1,
	})

	content := "Matched else branch"
	if matched >= 0 {
		content = fmt.Sprintf("Matched condition %d", matched)
	}

	return schema.NodeOutput{
		schema.FieldOutput: map[string]any{
			schema.FieldConditions: conditions,
			schema.FieldContent:    content,
		},
	}, nil
}

// asMap wraps non-map inputs so expressions can always address input.*.
func asMap(input any) map[string]any {
	switch v := input.(type) {
	case map[string]any:
		return v
	case schema.NodeOutput:
		return v
	case nil:
		return map[string]any{}
	default:
		return map[string]any{"value": v}
	}
}

// truthy folds an expression result into a branch decision.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case int64:
		return val != 0
	case float64:
		return val != 0
	case nil:
		return false
	default:
		return true
	}
}
