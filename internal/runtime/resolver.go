package runtime

import (
	"github.com/chatflow-ai/chatflow/internal/graph"
	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// Resolve picks the node to run for an inbound message.
//
// The contact's saved position wins when it exists in g. A nil position, or one
// that is not in g (the flow was edited or another flow became active), falls
// back to the trigger node. It reports false when g has no trigger node.
func Resolve(contact *domain.Contact, g *graph.Graph) (domain.Node, bool) {
	if id := contact.Position(); id != "" {
		if node, ok := g.FindNode(id); ok {
			return node, true
		}
	}
	return g.TriggerNode()
}
