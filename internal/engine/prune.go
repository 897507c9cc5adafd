package engine

import (
	"github.com/023a424/agentflow/internal/graph"
	"github.com/023a424/agentflow/pkg/schema"
)

// pruneSuccessors inspects a decision node's output and returns the set of
// successor IDs to skip for this dispatch. For every condition whose
// isFullfilled is absent or false, the edge leaving the node on handle
// "<nodeId>-output-<index>" identifies a skipped successor. Non-decision
// nodes never prune.
//
// Pruning applies to this dispatch only: a skipped successor may still be
// reached through other paths, and already-scheduled branches are never
// retracted.
func pruneSuccessors(m *graph.Model, nodeID string, output schema.NodeOutput) map[string]struct{} {
	if !schema.IsDecisionNode(m.NodeName(nodeID)) {
		return nil
	}
	conditions := output.Conditions()
	if len(conditions) == 0 {
		return nil
	}

	skipped := make(map[string]struct{})
	for index, cond := range conditions {
		if cond.IsFullfilled {
			continue
		}
		handle := schema.OutputHandle(nodeID, index)
		for _, edge := range m.OutgoingEdges(nodeID) {
			if edge.SourceHandle == handle {
				skipped[edge.Target] = struct{}{}
			}
		}
	}
	return skipped
}
