package dsl

import (
	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id},
		builder: b,
	}
	b.order = append(b.order, id)
	b.nodes[id] = nb
	return nb
}

// Build returns the graph document, nodes and edges in declaration order.
func (b *Builder) Build() domain.FlowDocument {
	doc := domain.FlowDocument{
		Nodes: make([]domain.Node, 0, len(b.order)),
		Edges: append([]domain.Edge(nil), b.edges...),
	}
	for _, id := range b.order {
		doc.Nodes = append(doc.Nodes, b.nodes[id].Build())
	}
	return doc
}

// Flow wraps the built document in a named flow.
func (b *Builder) Flow(name string, active bool) *domain.Flow {
	return &domain.Flow{
		Name:     name,
		Data:     b.Build(),
		IsActive: active,
	}
}
