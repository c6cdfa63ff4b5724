// Package graph is the immutable in-memory view of one flow's nodes and edges.
//
// A Graph is rebuilt from the active flow document on every inbound message;
// it is never cached, because the active flow can change between messages.
package graph

import "github.com/chatflow-ai/chatflow/pkg/domain"

// Graph indexes a FlowDocument for lookups. It is safe for concurrent reads.
type Graph struct {
	nodes   []domain.Node
	edges   []domain.Edge
	byID    map[string]int
	targets map[string]struct{}
}

// Load builds a Graph from a flow document. It performs no validation:
// duplicate node ids resolve to the first declaration, dangling edges are kept.
func Load(doc domain.FlowDocument) *Graph {
	g := &Graph{
		nodes:   append([]domain.Node(nil), doc.Nodes...),
		edges:   append([]domain.Edge(nil), doc.Edges...),
		byID:    make(map[string]int, len(doc.Nodes)),
		targets: make(map[string]struct{}, len(doc.Edges)),
	}
	for i, n := range g.nodes {
		if _, dup := g.byID[n.ID]; !dup {
			g.byID[n.ID] = i
		}
	}
	for _, e := range g.edges {
		g.targets[e.Target] = struct{}{}
	}
	return g
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []domain.Node { return g.nodes }

// Edges returns the edges in declaration order.
func (g *Graph) Edges() []domain.Edge { return g.edges }

// FindNode returns the node with the given id.
func (g *Graph) FindNode(id string) (domain.Node, bool) {
	i, ok := g.byID[id]
	if !ok {
		return domain.Node{}, false
	}
	return g.nodes[i], true
}

// FirstOutgoingEdge returns the first edge, in declaration order, leaving source.
func (g *Graph) FirstOutgoingEdge(source string) (domain.Edge, bool) {
	for _, e := range g.edges {
		if e.Source == source {
			return e, true
		}
	}
	return domain.Edge{}, false
}

// TargetIDs returns the set of node ids that are the target of some edge.
// The returned map must not be modified.
func (g *Graph) TargetIDs() map[string]struct{} { return g.targets }

// TriggerNode returns the first node in declaration order with no incoming edge.
// It reports false for an empty graph or one where every node is a target.
func (g *Graph) TriggerNode() (domain.Node, bool) {
	for _, n := range g.nodes {
		if _, isTarget := g.targets[n.ID]; !isTarget {
			return n, true
		}
	}
	return domain.Node{}, false
}

// Next returns the target of the first outgoing edge of nodeID, or nil at a dead end.
func (g *Graph) Next(nodeID string) *string {
	e, ok := g.FirstOutgoingEdge(nodeID)
	if !ok {
		return nil
	}
	target := e.Target
	return &target
}
