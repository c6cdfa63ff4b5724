package graph

import (
	"testing"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(ids []string, edges ...[2]string) domain.FlowDocument {
	d := domain.FlowDocument{}
	for _, id := range ids {
		d.Nodes = append(d.Nodes, domain.Node{ID: id, Type: domain.NodeTypeText})
	}
	for _, e := range edges {
		d.Edges = append(d.Edges, domain.Edge{Source: e[0], Target: e[1]})
	}
	return d
}

func TestFindNode(t *testing.T) {
	g := Load(doc([]string{"A", "B", "C"}, [2]string{"A", "B"}))

	for _, id := range []string{"A", "B", "C"} {
		n, ok := g.FindNode(id)
		require.True(t, ok, "node %s should be found", id)
		assert.Equal(t, id, n.ID)
	}

	_, ok := g.FindNode("X")
	assert.False(t, ok)
	_, ok = g.FindNode("")
	assert.False(t, ok)
}

func TestFindNode_DuplicateIDUsesFirst(t *testing.T) {
	d := domain.FlowDocument{Nodes: []domain.Node{
		{ID: "A", Type: domain.NodeTypeText},
		{ID: "A", Type: domain.NodeTypeAI},
	}}
	n, ok := Load(d).FindNode("A")
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeText, n.Type)
}

func TestTriggerNode(t *testing.T) {
	tests := []struct {
		name   string
		doc    domain.FlowDocument
		want   string
		wantOK bool
	}{
		{"Single Node", doc([]string{"n1"}), "n1", true},
		{"Only Non-Target", doc([]string{"A", "B", "C"}, [2]string{"A", "B"}), "A", true},
		{"First In Declaration Order", doc([]string{"B", "A"}), "B", true},
		{"Later Node Is Trigger", doc([]string{"A", "B"}, [2]string{"B", "A"}), "B", true},
		{"Empty Graph", domain.FlowDocument{}, "", false},
		{"Every Node Targeted", doc([]string{"A", "B"}, [2]string{"A", "B"}, [2]string{"B", "A"}), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := Load(tt.doc).TriggerNode()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, n.ID)
		})
	}
}

func TestFirstOutgoingEdge(t *testing.T) {
	g := Load(doc([]string{"A", "B", "C"}, [2]string{"A", "C"}, [2]string{"A", "B"}, [2]string{"B", "C"}))

	e, ok := g.FirstOutgoingEdge("A")
	require.True(t, ok)
	assert.Equal(t, "C", e.Target, "first edge in declaration order wins")

	_, ok = g.FirstOutgoingEdge("C")
	assert.False(t, ok)

	require.NotNil(t, g.Next("B"))
	assert.Equal(t, "C", *g.Next("B"))
	assert.Nil(t, g.Next("C"))
}

func TestTargetIDs(t *testing.T) {
	g := Load(doc([]string{"A", "B", "C"}, [2]string{"A", "B"}, [2]string{"A", "ghost"}))
	assert.Equal(t, map[string]struct{}{"B": {}, "ghost": {}}, g.TargetIDs())
}

func TestLoad_DoesNotAliasInput(t *testing.T) {
	d := doc([]string{"A"})
	g := Load(d)
	d.Nodes[0].ID = "mutated"

	_, ok := g.FindNode("A")
	assert.True(t, ok)
}
