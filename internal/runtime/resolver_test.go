package runtime_test

import (
	"testing"

	"github.com/chatflow-ai/chatflow/internal/graph"
	"github.com/chatflow-ai/chatflow/internal/runtime"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	g := graph.Load(domain.FlowDocument{
		Nodes: []domain.Node{text("A", "a"), text("B", "b"), text("C", "c")},
		Edges: []domain.Edge{edge("A", "B")},
	})

	tests := []struct {
		name     string
		position *string
		want     string
	}{
		{"no position uses trigger", nil, "A"},
		{"valid position wins", ptr("C"), "C"},
		{"position pointing at a target", ptr("B"), "B"},
		{"stale position heals to trigger", ptr("X"), "A"},
		{"empty position uses trigger", ptr(""), "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, ok := runtime.Resolve(&domain.Contact{CurrentFlowNodeID: tt.position}, g)
			assert.True(t, ok)
			assert.Equal(t, tt.want, node.ID)
		})
	}
}

func TestResolve_NoTrigger(t *testing.T) {
	g := graph.Load(domain.FlowDocument{
		Nodes: []domain.Node{text("A", "a"), text("B", "b")},
		Edges: []domain.Edge{edge("A", "B"), edge("B", "A")},
	})

	_, ok := runtime.Resolve(&domain.Contact{CurrentFlowNodeID: ptr("gone")}, g)
	assert.False(t, ok)

	// A valid position still resolves even though the graph has no trigger.
	node, ok := runtime.Resolve(&domain.Contact{CurrentFlowNodeID: ptr("B")}, g)
	assert.True(t, ok)
	assert.Equal(t, "B", node.ID)

	_, ok = runtime.Resolve(&domain.Contact{}, graph.Load(domain.FlowDocument{}))
	assert.False(t, ok)
}
