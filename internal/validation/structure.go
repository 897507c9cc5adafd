package validation

import "github.com/023a424/agentflow/pkg/schema"

// ValidateStructure performs structural checks the JSON Schema cannot
// express: unique node IDs, edges referencing known executable nodes, and
// the presence of a start node carrying startInputType.
func ValidateStructure(flow *schema.FlowData) error {
	ids := make(map[string]bool, len(flow.Nodes))
	hasStartInput := false

	for _, node := range flow.Nodes {
		if ids[node.ID] {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate node ID: %s", node.ID)
		}
		ids[node.ID] = true

		if node.Data.Name == schema.NodeNameStart {
			if _, ok := node.Data.Inputs["startInputType"]; ok {
				hasStartInput = true
			}
		}
	}

	if !hasStartInput {
		return schema.NewError(schema.ErrCodeStartInput, "no start node declares startInputType")
	}

	sticky := make(map[string]bool)
	for _, node := range flow.Nodes {
		if node.Data.Name == schema.NodeNameStickyNote {
			sticky[node.ID] = true
		}
	}

	edgeIDs := make(map[string]bool, len(flow.Edges))
	for _, edge := range flow.Edges {
		if edge.ID != "" {
			if edgeIDs[edge.ID] {
				return schema.NewErrorf(schema.ErrCodeValidation, "duplicate edge ID: %s", edge.ID)
			}
			edgeIDs[edge.ID] = true
		}
		if !ids[edge.Source] || sticky[edge.Source] {
			return schema.NewErrorf(schema.ErrCodeValidation, "edge source %q is not an executable node", edge.Source)
		}
		if !ids[edge.Target] || sticky[edge.Target] {
			return schema.NewErrorf(schema.ErrCodeValidation, "edge target %q is not an executable node", edge.Target)
		}
	}
	return nil
}
