// Package graph builds the immutable in-memory model of a flow definition:
// adjacency in both directions, indegrees, and handle-ordered predecessors.
package graph

import (
	"sort"

	"github.com/023a424/agentflow/pkg/schema"
)

// Model is the adjacency view over a flow definition used by the scheduler.
// Sticky notes are annotations and never become vertices.
type Model struct {
	Nodes    map[string]*schema.FlowNode // node ID → definition
	Graph    map[string][]string         // node ID → successor IDs
	Reversed map[string][]string         // node ID → predecessor IDs
	Indegree map[string]int              // node ID → number of incoming edges

	edges    []schema.FlowEdge
	outgoing map[string][]schema.FlowEdge
	incoming map[string][]schema.FlowEdge
}

// Build constructs the Model from a flow definition. It validates that every
// edge references known, executable nodes and that node IDs are unique.
func Build(flow *schema.FlowData) (*Model, error) {
	if flow == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow definition is nil")
	}
	if len(flow.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow has no nodes")
	}

	m := &Model{
		Nodes:    make(map[string]*schema.FlowNode, len(flow.Nodes)),
		Graph:    make(map[string][]string, len(flow.Nodes)),
		Reversed: make(map[string][]string, len(flow.Nodes)),
		Indegree: make(map[string]int, len(flow.Nodes)),
		outgoing: make(map[string][]schema.FlowEdge),
		incoming: make(map[string][]schema.FlowEdge),
	}

	for i := range flow.Nodes {
		node := &flow.Nodes[i]
		if node.ID == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "flow contains a node with empty ID")
		}
		if node.Data.Name == schema.NodeNameStickyNote {
			continue
		}
		if _, exists := m.Nodes[node.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate node ID: %s", node.ID)
		}
		m.Nodes[node.ID] = node
		m.Graph[node.ID] = nil
		m.Reversed[node.ID] = nil
		m.Indegree[node.ID] = 0
	}

	for _, edge := range flow.Edges {
		if _, ok := m.Nodes[edge.Source]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "edge source %q is not an executable node", edge.Source)
		}
		if _, ok := m.Nodes[edge.Target]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "edge target %q is not an executable node", edge.Target)
		}
		m.edges = append(m.edges, edge)
		m.Graph[edge.Source] = append(m.Graph[edge.Source], edge.Target)
		m.Reversed[edge.Target] = append(m.Reversed[edge.Target], edge.Source)
		m.Indegree[edge.Target]++
		m.outgoing[edge.Source] = append(m.outgoing[edge.Source], edge)
		m.incoming[edge.Target] = append(m.incoming[edge.Target], edge)
	}

	return m, nil
}

// Node returns the definition for a node ID, or nil.
func (m *Model) Node(id string) *schema.FlowNode {
	return m.Nodes[id]
}

// NodeName returns the logical name for a node ID, or "".
func (m *Model) NodeName(id string) string {
	if n := m.Nodes[id]; n != nil {
		return n.Data.Name
	}
	return ""
}

// StartingNodes returns all nodes with indegree zero, sorted by ID for
// deterministic scheduling.
func (m *Model) StartingNodes() []string {
	var starts []string
	for id, deg := range m.Indegree {
		if deg == 0 {
			starts = append(starts, id)
		}
	}
	sort.Strings(starts)
	return starts
}

// Successors returns the successor IDs of a node.
func (m *Model) Successors(id string) []string {
	return m.Graph[id]
}

// Predecessors returns the predecessor IDs of a node.
func (m *Model) Predecessors(id string) []string {
	return m.Reversed[id]
}

// OutgoingEdges returns the edges leaving a node.
func (m *Model) OutgoingEdges(id string) []schema.FlowEdge {
	return m.outgoing[id]
}

// SortedPredecessors returns the predecessors of a target ordered by the
// numeric suffix of the incoming edge's source handle, ties broken by source
// ID. This fixes deterministic fan-in positioning for multi-input targets.
func (m *Model) SortedPredecessors(target string) []string {
	edges := make([]schema.FlowEdge, len(m.incoming[target]))
	copy(edges, m.incoming[target])
	sort.SliceStable(edges, func(i, j int) bool {
		hi, hj := schema.HandleIndex(edges[i].SourceHandle), schema.HandleIndex(edges[j].SourceHandle)
		if hi != hj {
			return hi < hj
		}
		return edges[i].Source < edges[j].Source
	})
	preds := make([]string, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		preds = append(preds, e.Source)
	}
	return preds
}
