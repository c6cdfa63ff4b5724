package dsl

import (
	"fmt"

	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Text makes the node send a static message.
func (n *NodeBuilder) Text(message string) *NodeBuilder {
	n.node.Type = domain.NodeTypeText
	return n.Data(domain.DataKeyMessage, message)
}

// AI makes the node send an AI-generated reply driven by prompt.
func (n *NodeBuilder) AI(prompt string) *NodeBuilder {
	n.node.Type = domain.NodeTypeAI
	return n.Data(domain.DataKeyPrompt, prompt)
}

// Type sets a raw node type. Unknown types are routed through without a reply.
func (n *NodeBuilder) Type(nodeType string) *NodeBuilder {
	n.node.Type = nodeType
	return n
}

// Data sets a payload field on the node.
func (n *NodeBuilder) Data(key string, value any) *NodeBuilder {
	if n.node.Data == nil {
		n.node.Data = make(map[string]any)
	}
	n.node.Data[key] = value
	return n
}

// Go adds an edge from this node to target.
// Only the first edge out of a node is ever followed.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	b := n.builder
	b.edges = append(b.edges, domain.Edge{
		ID:     fmt.Sprintf("e%d-%s-%s", len(b.edges)+1, n.node.ID, target),
		Source: n.node.ID,
		Target: target,
	})
	return n
}

// Build returns a copy of the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	node := n.node
	if n.node.Data != nil {
		node.Data = make(map[string]any, len(n.node.Data))
		for k, v := range n.node.Data {
			node.Data[k] = v
		}
	}
	return node
}
