package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
	"github.com/google/uuid"
)

var _ ports.Store = (*Store)(nil)

// Store implements ports.Store in memory.
// Safe for concurrent use. Values are copied on write and on read.
type Store struct {
	mu       sync.RWMutex
	contacts map[string]*domain.Contact // by ID
	phones   map[string]string          // phone -> ID
	flows    []*domain.Flow
	logs     []domain.MessageLog
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		contacts: make(map[string]*domain.Contact),
		phones:   make(map[string]string),
	}
}

// ContactByPhone returns a copy of the contact with the given phone number.
func (s *Store) ContactByPhone(ctx context.Context, phone string) (*domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.phones[phone]
	if !ok {
		return nil, domain.ErrContactNotFound
	}
	return copyContact(s.contacts[id]), nil
}

// InsertContact stores a copy of contact under a fresh ID.
func (s *Store) InsertContact(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.phones[contact.PhoneNumber]; taken {
		return nil, domain.ErrContactExists
	}
	stored := copyContact(contact)
	stored.ID = uuid.NewString()
	s.contacts[stored.ID] = stored
	s.phones[stored.PhoneNumber] = stored.ID
	return copyContact(stored), nil
}

// UpdateContactState sets the saved position and last-active time.
func (s *Store) UpdateContactState(ctx context.Context, contactID string, nodeID *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[contactID]
	if !ok {
		return domain.ErrContactNotFound
	}
	c.CurrentFlowNodeID = copyString(nodeID)
	c.LastActive = at
	return nil
}

// ActiveFlow returns a copy of the active flow.
func (s *Store) ActiveFlow(ctx context.Context) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.flows {
		if f.IsActive {
			return copyFlow(f), nil
		}
	}
	return nil, domain.ErrNoActiveFlow
}

// SaveFlow inserts a flow (empty ID) or replaces the flow with the same ID.
func (s *Store) SaveFlow(ctx context.Context, flow *domain.Flow) (*domain.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyFlow(flow)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.IsActive {
		for _, f := range s.flows {
			f.IsActive = false
		}
	}

	replaced := false
	for i, f := range s.flows {
		if f.ID == stored.ID {
			s.flows[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		s.flows = append(s.flows, stored)
	}
	return copyFlow(stored), nil
}

// AppendMessageLog appends a copy of entry.
func (s *Store) AppendMessageLog(ctx context.Context, entry *domain.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.logs = append(s.logs, stored)
	return nil
}

// RecentLogs returns the newest limit entries of the contact, newest first.
// Entries with equal timestamps keep reverse insertion order.
func (s *Store) RecentLogs(ctx context.Context, contactID string, limit int) ([]domain.MessageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.MessageLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].ContactID == contactID {
			out = append(out, s.logs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Logs returns every stored entry in insertion order (tests and tooling).
func (s *Store) Logs() []domain.MessageLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MessageLog(nil), s.logs...)
}

// Contacts returns copies of every stored contact.
func (s *Store) Contacts() []*domain.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, copyContact(c))
	}
	return out
}

func copyContact(c *domain.Contact) *domain.Contact {
	ret := *c
	ret.Tags = append([]string(nil), c.Tags...)
	ret.CurrentFlowNodeID = copyString(c.CurrentFlowNodeID)
	return &ret
}

func copyFlow(f *domain.Flow) *domain.Flow {
	ret := *f
	ret.Data.Nodes = make([]domain.Node, len(f.Data.Nodes))
	for i, n := range f.Data.Nodes {
		ret.Data.Nodes[i] = n
		if n.Data != nil {
			ret.Data.Nodes[i].Data = make(map[string]any, len(n.Data))
			for k, v := range n.Data {
				ret.Data.Nodes[i].Data[k] = v
			}
		}
	}
	ret.Data.Edges = append([]domain.Edge(nil), f.Data.Edges...)
	return &ret
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
