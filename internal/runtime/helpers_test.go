package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/adapters/memory"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/stretchr/testify/require"
)

const phone = "+15551234567"

var errBoom = errors.New("boom")

func text(id, msg string) domain.Node {
	return domain.Node{ID: id, Type: domain.NodeTypeText, Data: map[string]any{"message": msg}}
}

func ai(id, prompt string) domain.Node {
	return domain.Node{ID: id, Type: domain.NodeTypeAI, Data: map[string]any{"prompt": prompt}}
}

func edge(src, dst string) domain.Edge {
	return domain.Edge{ID: src + "->" + dst, Source: src, Target: dst}
}

func ptr(s string) *string { return &s }

func activate(t *testing.T, store *memory.Store, nodes []domain.Node, edges []domain.Edge) *domain.Flow {
	t.Helper()
	flow, err := store.SaveFlow(context.Background(), &domain.Flow{
		Name:     "test",
		IsActive: true,
		Data:     domain.FlowDocument{Nodes: nodes, Edges: edges},
	})
	require.NoError(t, err)
	return flow
}

// placeContact creates the contact with a saved position.
func placeContact(t *testing.T, store *memory.Store, nodeID *string) *domain.Contact {
	t.Helper()
	ctx := context.Background()
	c, err := store.InsertContact(ctx, domain.NewLead(phone, time.Now()))
	require.NoError(t, err)
	require.NoError(t, store.UpdateContactState(ctx, c.ID, nodeID, time.Now()))
	c.CurrentFlowNodeID = nodeID
	return c
}

func contactOf(t *testing.T, store *memory.Store) *domain.Contact {
	t.Helper()
	c, err := store.ContactByPhone(context.Background(), phone)
	require.NoError(t, err)
	return c
}

func countLogs(store *memory.Store, dir domain.Direction) int {
	n := 0
	for _, l := range store.Logs() {
		if l.Direction == dir {
			n++
		}
	}
	return n
}

type sent struct {
	phone, text string
}

// recorder is a DeliveryService that records sends and can fail.
type recorder struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (r *recorder) Send(ctx context.Context, phone, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{phone, text})
	return r.err
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, s := range r.sent {
		out[i] = s.text
	}
	return out
}

// faultyStore fails selected operations of an otherwise working memory store.
type faultyStore struct {
	*memory.Store
	failActiveFlow bool
	failUpdate     bool
	failAppendDir  domain.Direction
	failRecent     bool
	failLookup     bool
}

func (s *faultyStore) ContactByPhone(ctx context.Context, p string) (*domain.Contact, error) {
	if s.failLookup {
		return nil, errBoom
	}
	return s.Store.ContactByPhone(ctx, p)
}

func (s *faultyStore) ActiveFlow(ctx context.Context) (*domain.Flow, error) {
	if s.failActiveFlow {
		return nil, errBoom
	}
	return s.Store.ActiveFlow(ctx)
}

func (s *faultyStore) UpdateContactState(ctx context.Context, id string, nodeID *string, at time.Time) error {
	if s.failUpdate {
		return errBoom
	}
	return s.Store.UpdateContactState(ctx, id, nodeID, at)
}

func (s *faultyStore) AppendMessageLog(ctx context.Context, entry *domain.MessageLog) error {
	if s.failAppendDir != "" && entry.Direction == s.failAppendDir {
		return errBoom
	}
	return s.Store.AppendMessageLog(ctx, entry)
}

func (s *faultyStore) RecentLogs(ctx context.Context, id string, limit int) ([]domain.MessageLog, error) {
	if s.failRecent {
		return nil, errBoom
	}
	return s.Store.RecentLogs(ctx, id, limit)
}
