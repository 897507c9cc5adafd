package schema

import (
	"encoding/json"
	"fmt"
)

// NodeOutput is the open record a node implementation returns. The engine
// only interprets the recognized fields below; everything else passes
// through to the checkpoint and the caller untouched.
type NodeOutput map[string]any

// Recognized top-level and output-level field names.
const (
	FieldState       = "state"
	FieldChatHistory = "chatHistory"
	FieldOutput      = "output"
	FieldContent     = "content"
	FieldConditions  = "conditions"
	FieldForm        = "form"
	FieldNodeID      = "nodeID"
	FieldMaxLoop     = "maxLoopCount"
	FieldHumanAction = "humanInputAction"
	FieldError       = "error"
)

// Condition is one branch decision in a decision node's output.
// The field name keeps the wire spelling.
type Condition struct {
	IsFullfilled bool `json:"isFullfilled"`
}

// ChatTurn is a single chat-history message.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HumanInputAction describes the approve/reject prompt surfaced to the
// caller when a human-input node pauses the flow.
type HumanInputAction struct {
	ID       string           `json:"id"`
	Mapping  map[string]any   `json:"mapping"`
	Elements []ActionElement  `json:"elements"`
	Data     map[string]any   `json:"data,omitempty"`
}

// ActionElement is one interactive element of a HumanInputAction.
type ActionElement struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Output returns the nested "output" record, or nil.
func (o NodeOutput) Output() map[string]any {
	m, _ := o[FieldOutput].(map[string]any)
	return m
}

// Content returns output.content as a string, or "".
func (o NodeOutput) Content() string {
	out := o.Output()
	if out == nil {
		return ""
	}
	switch v := out[FieldContent].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// State returns the top-level "state" record, or nil.
func (o NodeOutput) State() map[string]any {
	m, _ := o[FieldState].(map[string]any)
	return m
}

// HasState reports whether the node returned a "state" field at all; an
// empty map still overwrites the runtime state.
func (o NodeOutput) HasState() bool {
	_, ok := o[FieldState]
	return ok
}

// ChatHistory returns the top-level "chatHistory" turns.
func (o NodeOutput) ChatHistory() []ChatTurn {
	raw, ok := o[FieldChatHistory]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []ChatTurn:
		return v
	case []any:
		turns := make([]ChatTurn, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			turns = append(turns, ChatTurn{Role: role, Content: content})
		}
		return turns
	}
	return nil
}

// Form returns output.form, or nil.
func (o NodeOutput) Form() map[string]any {
	out := o.Output()
	if out == nil {
		return nil
	}
	m, _ := out[FieldForm].(map[string]any)
	return m
}

// Conditions returns output.conditions decoded into Condition values.
// Entries without an isFullfilled field decode as unfulfilled.
func (o NodeOutput) Conditions() []Condition {
	out := o.Output()
	if out == nil {
		return nil
	}
	raw, ok := out[FieldConditions]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []Condition:
		return v
	case []any:
		conds := make([]Condition, len(v))
		for i, item := range v {
			if m, ok := item.(map[string]any); ok {
				if b, ok := m["isFullfilled"].(bool); ok {
					conds[i].IsFullfilled = b
				}
			}
		}
		return conds
	}
	return nil
}

// LoopTarget returns output.nodeID and output.maxLoopCount for loop nodes.
// ok is false when no loop-back target was emitted.
func (o NodeOutput) LoopTarget() (nodeID string, maxLoop int, ok bool) {
	out := o.Output()
	if out == nil {
		return "", 0, false
	}
	nodeID, _ = out[FieldNodeID].(string)
	if nodeID == "" {
		return "", 0, false
	}
	switch v := out[FieldMaxLoop].(type) {
	case int:
		maxLoop = v
	case float64:
		maxLoop = int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			maxLoop = int(n)
		}
	}
	return nodeID, maxLoop, true
}

// Clone returns a deep copy of the output.
func (o NodeOutput) Clone() NodeOutput {
	if o == nil {
		return nil
	}
	return NodeOutput(deepCopyValue(map[string]any(o)).(map[string]any))
}
