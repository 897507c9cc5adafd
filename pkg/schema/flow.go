package schema

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Logical node names the engine special-cases. Every other name is opaque
// and dispatched through the node registry.
const (
	NodeNameStart          = "startAgentflow"
	NodeNameStickyNote     = "stickyNoteAgentflow"
	NodeNameLoop           = "loopAgentflow"
	NodeNameHumanInput     = "humanInputAgentflow"
	NodeNameCondition      = "conditionAgentflow"
	NodeNameConditionAgent = "conditionAgentAgentflow"
)

// decisionNodeNames are the logical names whose outputs may prune
// successor edges (via output.conditions). Kept in one place so the set
// can be extended without touching the scheduler.
var decisionNodeNames = map[string]bool{
	NodeNameCondition:      true,
	NodeNameConditionAgent: true,
	NodeNameHumanInput:     true,
}

// IsDecisionNode reports whether the logical name belongs to the decision set.
func IsDecisionNode(name string) bool {
	return decisionNodeNames[name]
}

// FlowData is the serialized flow definition: the node set and the edge set
// as authored in the visual editor.
type FlowData struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

// FlowNode is a vertex of the flow graph.
type FlowNode struct {
	ID   string   `json:"id"`
	Data NodeData `json:"data"`
}

// NodeData carries a node's type discriminator, display label, declared
// parameters, and concrete input values.
type NodeData struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`  // logical name, e.g. "conditionAgentflow"
	Label       string         `json:"label"` // display label
	InputParams []InputParam   `json:"inputParams,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// InputParam declares a single input parameter of a node.
type InputParam struct {
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	AcceptVariable bool   `json:"acceptVariable,omitempty"`
}

// Clone returns a deep copy of the node data. The engine never mutates the
// authored definition; resolution and overrides operate on a copy.
func (d *NodeData) Clone() *NodeData {
	cp := &NodeData{
		ID:    d.ID,
		Name:  d.Name,
		Label: d.Label,
	}
	if d.InputParams != nil {
		cp.InputParams = make([]InputParam, len(d.InputParams))
		copy(cp.InputParams, d.InputParams)
	}
	if d.Inputs != nil {
		cp.Inputs = deepCopyValue(d.Inputs).(map[string]any)
	}
	return cp
}

// deepCopyValue copies nested maps and slices; scalars are returned as-is.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// FlowEdge connects a source output handle to a target input handle.
// Source handles follow the form "<nodeId>-output-<index>"; the index routes
// conditional branches.
type FlowEdge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// OutputHandle builds a source handle for the given node and branch index.
func OutputHandle(nodeID string, index int) string {
	return nodeID + "-output-" + strconv.Itoa(index)
}

// HandleIndex parses the numeric branch index out of a source handle.
// The first numeric token after splitting on "-" wins; malformed or missing
// suffixes default to 0, which keeps single-output nodes on branch zero.
func HandleIndex(handle string) int {
	for _, tok := range strings.Split(handle, "-") {
		if n, err := strconv.Atoi(tok); err == nil {
			return n
		}
	}
	return 0
}

// ParseFlowData parses a serialized flow definition.
func ParseFlowData(raw []byte) (*FlowData, error) {
	var flow FlowData
	if err := json.Unmarshal(raw, &flow); err != nil {
		return nil, NewErrorf(ErrCodeValidation, "parse flow data: %s", err.Error()).WithCause(err)
	}
	return &flow, nil
}
