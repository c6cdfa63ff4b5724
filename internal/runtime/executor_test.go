package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/chatflow-ai/chatflow/internal/graph"
	"github.com/chatflow-ai/chatflow/internal/runtime"
	"github.com/chatflow-ai/chatflow/pkg/adapters/memory"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoAI(t *testing.T, wantPrompt string) ports.AIFunc {
	return func(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error) {
		assert.Equal(t, wantPrompt, prompt)
		return "answer: " + prompt, nil
	}
}

func TestExecutor_Text(t *testing.T) {
	store := memory.NewStore()
	delivery := &recorder{}
	g := graph.Load(domain.FlowDocument{
		Nodes: []domain.Node{text("n1", "Hi!"), text("n2", "Bye")},
		Edges: []domain.Edge{edge("n1", "n2")},
	})
	contact := &domain.Contact{ID: "c1", PhoneNumber: phone}

	x := runtime.NewExecutor(store, nil, delivery)
	exec, err := x.Execute(context.Background(), text("n1", "Hi!"), contact, g)
	require.NoError(t, err)

	assert.Equal(t, "Hi!", exec.Reply)
	assert.True(t, exec.Delivered)
	assert.NoError(t, exec.UpstreamErr)
	require.NotNil(t, exec.NextNodeID)
	assert.Equal(t, "n2", *exec.NextNodeID)

	assert.Equal(t, []sent{{phone, "Hi!"}}, delivery.sent)
	logs := store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.DirectionOutbound, logs[0].Direction)
	assert.Equal(t, "Hi!", logs[0].Text)
	assert.Equal(t, phone, logs[0].FromNumber)
	assert.Equal(t, "c1", logs[0].ContactID)
}

func TestExecutor_SilentNodes(t *testing.T) {
	tests := []struct {
		name string
		node domain.Node
	}{
		{"empty text message", text("n1", "")},
		{"missing data", domain.Node{ID: "n1", Type: domain.NodeTypeText}},
		{"non-string message", domain.Node{ID: "n1", Type: domain.NodeTypeText, Data: map[string]any{"message": 42}}},
		{"unknown type", domain.Node{ID: "n1", Type: "imageMessage", Data: map[string]any{"url": "x"}}},
		{"empty type", domain.Node{ID: "n1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			delivery := &recorder{}
			g := graph.Load(domain.FlowDocument{
				Nodes: []domain.Node{tt.node, text("n2", "next")},
				Edges: []domain.Edge{edge("n1", "n2")},
			})

			x := runtime.NewExecutor(store, nil, delivery)
			exec, err := x.Execute(context.Background(), tt.node, &domain.Contact{ID: "c1", PhoneNumber: phone}, g)
			require.NoError(t, err)

			assert.Empty(t, exec.Reply)
			assert.False(t, exec.Delivered)
			assert.NoError(t, exec.UpstreamErr)
			require.NotNil(t, exec.NextNodeID, "silent nodes still route")
			assert.Equal(t, "n2", *exec.NextNodeID)
			assert.Empty(t, delivery.sent)
			assert.Empty(t, store.Logs())
		})
	}
}

func TestExecutor_AIUsesHistory(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.AppendMessageLog(ctx, &domain.MessageLog{
		ContactID: "c1", Direction: domain.DirectionInbound, Text: "what's the price?", Timestamp: time.Now(),
	}))

	var gotHistory []domain.ChatMessage
	aiSvc := ports.AIFunc(func(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error) {
		gotHistory = history
		return "It costs 10 USD.", nil
	})
	delivery := &recorder{}
	node := ai("n1", "Answer pricing questions")
	g := graph.Load(domain.FlowDocument{Nodes: []domain.Node{node}})

	exec, err := runtime.NewExecutor(store, aiSvc, delivery).Execute(ctx, node, &domain.Contact{ID: "c1", PhoneNumber: phone}, g)
	require.NoError(t, err)

	assert.Equal(t, "It costs 10 USD.", exec.Reply)
	assert.Nil(t, exec.NextNodeID)
	assert.Equal(t, []domain.ChatMessage{{Role: domain.RoleUser, Content: "what's the price?"}}, gotHistory)
	assert.Equal(t, []string{"It costs 10 USD."}, delivery.texts())
}

func TestExecutor_AIFailureStillAdvances(t *testing.T) {
	store := memory.NewStore()
	delivery := &recorder{}
	failing := ports.AIFunc(func(context.Context, string, []domain.ChatMessage) (string, error) {
		return "", errBoom
	})

	node := ai("n1", "p")
	g := graph.Load(domain.FlowDocument{
		Nodes: []domain.Node{node, text("n2", "x")},
		Edges: []domain.Edge{edge("n1", "n2")},
	})

	x := runtime.NewExecutor(store, failing, delivery)
	exec, err := x.Execute(context.Background(), node, &domain.Contact{ID: "c1", PhoneNumber: phone}, g)
	require.NoError(t, err)

	assert.Empty(t, exec.Reply)
	assert.Empty(t, delivery.sent, "nothing is sent when the AI fails")
	assert.Empty(t, store.Logs())
	require.NotNil(t, exec.NextNodeID)
	assert.Equal(t, "n2", *exec.NextNodeID)

	assert.ErrorIs(t, exec.UpstreamErr, domain.ErrUpstream)
	assert.ErrorIs(t, exec.UpstreamErr, errBoom)
	var upErr *runtime.UpstreamError
	require.ErrorAs(t, exec.UpstreamErr, &upErr)
	assert.Equal(t, runtime.ServiceAI, upErr.Service)
	assert.Equal(t, "n1", upErr.NodeID)
}

func TestExecutor_MissingCollaborators(t *testing.T) {
	store := memory.NewStore()
	node := ai("n1", "p")
	g := graph.Load(domain.FlowDocument{Nodes: []domain.Node{node}})

	exec, err := runtime.NewExecutor(store, nil, nil).Execute(context.Background(), node, &domain.Contact{ID: "c1"}, g)
	require.NoError(t, err)
	assert.ErrorIs(t, exec.UpstreamErr, domain.ErrUpstream)

	// Text node without a delivery service: logged, reported, not delivered.
	tnode := text("t1", "hello")
	exec, err = runtime.NewExecutor(store, nil, nil).Execute(context.Background(), tnode, &domain.Contact{ID: "c1"},
		graph.Load(domain.FlowDocument{Nodes: []domain.Node{tnode}}))
	require.NoError(t, err)
	assert.Equal(t, "hello", exec.Reply)
	assert.False(t, exec.Delivered)
	assert.ErrorIs(t, exec.UpstreamErr, domain.ErrUpstream)
	assert.Len(t, store.Logs(), 1)
}

func TestExecutor_DeliveryFailureIsLoggedAsSent(t *testing.T) {
	store := memory.NewStore()
	delivery := &recorder{err: errBoom}
	node := text("n1", "Hi!")
	g := graph.Load(domain.FlowDocument{
		Nodes: []domain.Node{node, text("n2", "x")},
		Edges: []domain.Edge{edge("n1", "n2")},
	})

	exec, err := runtime.NewExecutor(store, nil, delivery).Execute(context.Background(), node, &domain.Contact{ID: "c1", PhoneNumber: phone}, g)
	require.NoError(t, err)

	assert.Equal(t, "Hi!", exec.Reply)
	assert.False(t, exec.Delivered)
	var upErr *runtime.UpstreamError
	require.ErrorAs(t, exec.UpstreamErr, &upErr)
	assert.Equal(t, runtime.ServiceDelivery, upErr.Service)

	require.Len(t, store.Logs(), 1)
	assert.Equal(t, domain.DirectionOutbound, store.Logs()[0].Direction)
	require.NotNil(t, exec.NextNodeID)
	assert.Equal(t, "n2", *exec.NextNodeID)
}

func TestExecutor_OutboundLogFailure(t *testing.T) {
	store := &faultyStore{Store: memory.NewStore(), failAppendDir: domain.DirectionOutbound}
	node := text("n1", "Hi!")
	g := graph.Load(domain.FlowDocument{Nodes: []domain.Node{node}})

	_, err := runtime.NewExecutor(store, nil, &recorder{}).Execute(context.Background(), node, &domain.Contact{ID: "c1"}, g)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestExecutor_HistoryFailureIsStorageError(t *testing.T) {
	store := &faultyStore{Store: memory.NewStore(), failRecent: true}
	node := ai("n1", "p")
	g := graph.Load(domain.FlowDocument{Nodes: []domain.Node{node}})

	_, err := runtime.NewExecutor(store, echoAI(t, "p"), &recorder{}).Execute(context.Background(), node, &domain.Contact{ID: "c1"}, g)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
