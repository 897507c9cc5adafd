package engine

import (
	"github.com/023a424/agentflow/internal/graph"
	"github.com/023a424/agentflow/pkg/schema"
)

// waitingNode tracks fan-in bookkeeping for a target whose predecessors are
// still in flight. A predecessor is either unconditional (expectedInputs)
// or belongs to exactly one conditional group, determined by walking back
// to its nearest decision ancestor; the two sets never overlap.
type waitingNode struct {
	nodeID            string
	receivedInputs    map[string]any
	expectedInputs    map[string]struct{}
	conditionalGroups map[string][]string // decision node ID → member predecessors
	isConditional     bool
}

// newWaitingNode analyzes the dependencies of target and builds its waiting
// record.
func newWaitingNode(m *graph.Model, target string) *waitingNode {
	w := &waitingNode{
		nodeID:            target,
		receivedInputs:    make(map[string]any),
		expectedInputs:    make(map[string]struct{}),
		conditionalGroups: make(map[string][]string),
	}

	for _, pred := range m.Predecessors(target) {
		// A predecessor that is itself a decision node forms its own
		// conditional group.
		if schema.IsDecisionNode(m.NodeName(pred)) {
			w.conditionalGroups[pred] = append(w.conditionalGroups[pred], pred)
			w.isConditional = true
			continue
		}

		if decision := nearestDecisionAncestor(m, pred); decision != "" {
			w.conditionalGroups[decision] = append(w.conditionalGroups[decision], pred)
			w.isConditional = true
		} else {
			w.expectedInputs[pred] = struct{}{}
		}
	}

	return w
}

// nearestDecisionAncestor walks the reverse graph depth-first from start
// and returns the first decision-set node reached, or "".
func nearestDecisionAncestor(m *graph.Model, start string) string {
	visited := map[string]bool{start: true}
	stack := append([]string(nil), m.Predecessors(start)...)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		if schema.IsDecisionNode(m.NodeName(current)) {
			return current
		}
		stack = append(stack, m.Predecessors(current)...)
	}
	return ""
}

// receive records a delivered predecessor output.
func (w *waitingNode) receive(predID string, output any) {
	w.receivedInputs[predID] = output
}

// ready reports whether the node can be dispatched: every unconditional
// predecessor has delivered, and every conditional group has delivered at
// least one member.
func (w *waitingNode) ready() bool {
	for pred := range w.expectedInputs {
		if _, ok := w.receivedInputs[pred]; !ok {
			return false
		}
	}
	for _, members := range w.conditionalGroups {
		delivered := false
		for _, member := range members {
			if _, ok := w.receivedInputs[member]; ok {
				delivered = true
				break
			}
		}
		if !delivered {
			return false
		}
	}
	return true
}
