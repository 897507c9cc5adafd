package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/023a424/agentflow/pkg/schema"
)

func node(id, name string) schema.FlowNode {
	return schema.FlowNode{ID: id, Data: schema.NodeData{ID: id, Name: name, Label: id}}
}

func edge(source, handle, target string) schema.FlowEdge {
	return schema.FlowEdge{Source: source, SourceHandle: handle, Target: target}
}

func TestBuildAdjacency(t *testing.T) {
	flow := &schema.FlowData{
		Nodes: []schema.FlowNode{
			node("start_0", schema.NodeNameStart),
			node("llm_0", "llmAgentflow"),
			node("llm_1", "llmAgentflow"),
		},
		Edges: []schema.FlowEdge{
			edge("start_0", "start_0-output-0", "llm_0"),
			edge("llm_0", "llm_0-output-0", "llm_1"),
		},
	}

	m, err := Build(flow)
	require.NoError(t, err)

	assert.Equal(t, []string{"llm_0"}, m.Successors("start_0"))
	assert.Equal(t, []string{"llm_0"}, m.Predecessors("llm_1"))
	assert.Equal(t, 0, m.Indegree["start_0"])
	assert.Equal(t, 1, m.Indegree["llm_1"])
	assert.Equal(t, []string{"start_0"}, m.StartingNodes())
	assert.Equal(t, "llmAgentflow", m.NodeName("llm_0"))
	assert.Equal(t, "", m.NodeName("missing"))
}

func TestBuildFiltersStickyNotes(t *testing.T) {
	flow := &schema.FlowData{
		Nodes: []schema.FlowNode{
			node("start_0", schema.NodeNameStart),
			node("note_0", schema.NodeNameStickyNote),
		},
	}

	m, err := Build(flow)
	require.NoError(t, err)

	assert.Nil(t, m.Node("note_0"))
	assert.Equal(t, []string{"start_0"}, m.StartingNodes())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		flow *schema.FlowData
	}{
		{"nil flow", nil},
		{"no nodes", &schema.FlowData{}},
		{"duplicate node id", &schema.FlowData{
			Nodes: []schema.FlowNode{node("a", "x"), node("a", "x")},
		}},
		{"edge to unknown node", &schema.FlowData{
			Nodes: []schema.FlowNode{node("a", "x")},
			Edges: []schema.FlowEdge{edge("a", "", "ghost")},
		}},
		{"edge from sticky note", &schema.FlowData{
			Nodes: []schema.FlowNode{node("a", "x"), node("note", schema.NodeNameStickyNote)},
			Edges: []schema.FlowEdge{edge("note", "", "a")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.flow)
			assert.Error(t, err)
		})
	}
}

func TestStartingNodesSorted(t *testing.T) {
	flow := &schema.FlowData{
		Nodes: []schema.FlowNode{node("b", "x"), node("a", "x"), node("c", "x")},
	}
	m, err := Build(flow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, m.StartingNodes())
}

func TestSortedPredecessorsByHandleIndex(t *testing.T) {
	flow := &schema.FlowData{
		Nodes: []schema.FlowNode{
			node("cond_0", schema.NodeNameCondition),
			node("a", "x"), node("b", "x"), node("merge", "x"),
		},
		Edges: []schema.FlowEdge{
			edge("b", "b-output-1", "merge"),
			edge("a", "a-output-0", "merge"),
			edge("cond_0", "cond_0-output-0", "a"),
			edge("cond_0", "cond_0-output-1", "b"),
		},
	}
	m, err := Build(flow)
	require.NoError(t, err)

	// a (handle index 0) sorts before b (handle index 1) regardless of
	// edge declaration order.
	assert.Equal(t, []string{"a", "b"}, m.SortedPredecessors("merge"))
}

func TestSortedPredecessorsTieBreaksBySourceID(t *testing.T) {
	flow := &schema.FlowData{
		Nodes: []schema.FlowNode{
			node("z", "x"), node("a", "x"), node("merge", "x"),
		},
		Edges: []schema.FlowEdge{
			edge("z", "z-output-0", "merge"),
			edge("a", "a-output-0", "merge"),
		},
	}
	m, err := Build(flow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, m.SortedPredecessors("merge"))
}

func TestOutgoingEdges(t *testing.T) {
	flow := &schema.FlowData{
		Nodes: []schema.FlowNode{node("cond_0", schema.NodeNameCondition), node("a", "x"), node("b", "x")},
		Edges: []schema.FlowEdge{
			edge("cond_0", "cond_0-output-0", "a"),
			edge("cond_0", "cond_0-output-1", "b"),
		},
	}
	m, err := Build(flow)
	require.NoError(t, err)

	edges := m.OutgoingEdges("cond_0")
	require.Len(t, edges, 2)
	assert.Equal(t, "cond_0-output-0", edges[0].SourceHandle)
}
