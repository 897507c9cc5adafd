package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/023a424/agentflow/internal/graph"
	"github.com/023a424/agentflow/pkg/schema"
)

func buildModel(t *testing.T, flow *schema.FlowData) *graph.Model {
	t.Helper()
	m, err := graph.Build(flow)
	require.NoError(t, err)
	return m
}

func fnode(id, name string) schema.FlowNode {
	return schema.FlowNode{ID: id, Data: schema.NodeData{ID: id, Name: name, Label: id}}
}

func fedge(source, target string) schema.FlowEdge {
	return schema.FlowEdge{Source: source, SourceHandle: source + "-output-0", Target: target}
}

func TestWaitingUnconditionalPredecessors(t *testing.T) {
	// a and b both feed merge; neither has a decision ancestor.
	m := buildModel(t, &schema.FlowData{
		Nodes: []schema.FlowNode{
			fnode("start", schema.NodeNameStart),
			fnode("a", "x"), fnode("b", "x"), fnode("merge", "x"),
		},
		Edges: []schema.FlowEdge{
			fedge("start", "a"), fedge("start", "b"),
			fedge("a", "merge"), fedge("b", "merge"),
		},
	})

	w := newWaitingNode(m, "merge")
	assert.False(t, w.isConditional)
	assert.Len(t, w.expectedInputs, 2)
	assert.Empty(t, w.conditionalGroups)

	assert.False(t, w.ready())
	w.receive("a", schema.NodeOutput{})
	assert.False(t, w.ready())
	w.receive("b", schema.NodeOutput{})
	assert.True(t, w.ready())
}

func TestWaitingConditionalGroup(t *testing.T) {
	// cond → {a, b} → merge: a and b share one conditional group keyed by
	// cond; one delivery suffices.
	m := buildModel(t, &schema.FlowData{
		Nodes: []schema.FlowNode{
			fnode("start", schema.NodeNameStart),
			fnode("cond", schema.NodeNameCondition),
			fnode("a", "x"), fnode("b", "x"), fnode("merge", "x"),
		},
		Edges: []schema.FlowEdge{
			fedge("start", "cond"),
			{Source: "cond", SourceHandle: "cond-output-0", Target: "a"},
			{Source: "cond", SourceHandle: "cond-output-1", Target: "b"},
			fedge("a", "merge"), fedge("b", "merge"),
		},
	})

	w := newWaitingNode(m, "merge")
	assert.True(t, w.isConditional)
	assert.Empty(t, w.expectedInputs)
	require.Contains(t, w.conditionalGroups, "cond")
	assert.ElementsMatch(t, []string{"a", "b"}, w.conditionalGroups["cond"])

	assert.False(t, w.ready())
	w.receive("a", schema.NodeOutput{})
	assert.True(t, w.ready())
}

func TestWaitingDecisionPredecessorIsItsOwnGroup(t *testing.T) {
	m := buildModel(t, &schema.FlowData{
		Nodes: []schema.FlowNode{
			fnode("start", schema.NodeNameStart),
			fnode("human", schema.NodeNameHumanInput),
			fnode("next", "x"),
		},
		Edges: []schema.FlowEdge{
			fedge("start", "human"), fedge("human", "next"),
		},
	})

	w := newWaitingNode(m, "next")
	assert.True(t, w.isConditional)
	assert.Equal(t, []string{"human"}, w.conditionalGroups["human"])
	assert.Empty(t, w.expectedInputs)
}

func TestWaitingMixedGroups(t *testing.T) {
	// merge waits on an unconditional predecessor AND at least one member
	// of the conditional group.
	m := buildModel(t, &schema.FlowData{
		Nodes: []schema.FlowNode{
			fnode("start", schema.NodeNameStart),
			fnode("cond", schema.NodeNameCondition),
			fnode("branch", "x"), fnode("plain", "x"), fnode("merge", "x"),
		},
		Edges: []schema.FlowEdge{
			fedge("start", "cond"), fedge("start", "plain"),
			{Source: "cond", SourceHandle: "cond-output-0", Target: "branch"},
			fedge("branch", "merge"), fedge("plain", "merge"),
		},
	})

	w := newWaitingNode(m, "merge")
	assert.Contains(t, w.expectedInputs, "plain")
	assert.Equal(t, []string{"branch"}, w.conditionalGroups["cond"])

	w.receive("branch", schema.NodeOutput{})
	assert.False(t, w.ready(), "unconditional input still missing")
	w.receive("plain", schema.NodeOutput{})
	assert.True(t, w.ready())
}

func TestNearestDecisionAncestorStopsAtFirst(t *testing.T) {
	// human → cond → x → target: x's nearest decision ancestor is cond.
	m := buildModel(t, &schema.FlowData{
		Nodes: []schema.FlowNode{
			fnode("start", schema.NodeNameStart),
			fnode("human", schema.NodeNameHumanInput),
			fnode("cond", schema.NodeNameCondition),
			fnode("x", "n"), fnode("target", "n"),
		},
		Edges: []schema.FlowEdge{
			fedge("start", "human"), fedge("human", "cond"),
			{Source: "cond", SourceHandle: "cond-output-0", Target: "x"},
			fedge("x", "target"),
		},
	})

	assert.Equal(t, "cond", nearestDecisionAncestor(m, "x"))

	w := newWaitingNode(m, "target")
	assert.Equal(t, []string{"x"}, w.conditionalGroups["cond"])
}
