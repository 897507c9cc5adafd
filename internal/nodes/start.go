package nodes

import (
	"context"
	"encoding/json"

	"github.com/023a424/agentflow/pkg/schema"
)

// Start input types accepted by the start node.
const (
	StartInputChat = "chatInput"
	StartInputForm = "formInput"
)

// StartNode is the entry node of a flow. It surfaces the inbound question
// or form and seeds the initial runtime state from the authored flowState
// key/value list.
type StartNode struct{}

func (n *StartNode) Name() string        { return schema.NodeNameStart }
func (n *StartNode) Description() string { return "Flow entry point" }

func (n *StartNode) Run(ctx context.Context, data *schema.NodeData, input any, params RunParams) (schema.NodeOutput, error) {
	var content string
	switch inputString(data, "startInputType") {
	case StartInputForm:
		if params.Form != nil {
			b, err := json.Marshal(params.Form)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeNodeExecution, "marshal form values: %s", err.Error()).WithCause(err)
			}
			content = string(b)
		}
	default:
		content = params.Question
		if params.UploadedText != "" {
			content = params.UploadedText + "\n\n" + params.Question
		}
	}

	out := schema.NodeOutput{
		schema.FieldOutput: map[string]any{
			schema.FieldContent: content,
		},
	}

	if state := initialState(data); state != nil {
		out[schema.FieldState] = state
	}
	if params.Form != nil {
		out[schema.FieldOutput].(map[string]any)[schema.FieldForm] = params.Form
	}
	return out, nil
}

// initialState reads the authored flowState list ([{key, value}, ...]).
func initialState(data *schema.NodeData) map[string]any {
	if data == nil || data.Inputs == nil {
		return nil
	}
	raw, ok := data.Inputs["flowState"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	state := make(map[string]any, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, _ := m["key"].(string)
		if key == "" {
			continue
		}
		state[key] = m["value"]
	}
	if len(state) == 0 {
		return nil
	}
	return state
}
