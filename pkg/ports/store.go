package ports

import (
	"context"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// ContactStore persists contacts and their saved flow position.
type ContactStore interface {
	// ContactByPhone returns domain.ErrContactNotFound if no contact has the number.
	ContactByPhone(ctx context.Context, phone string) (*domain.Contact, error)

	// InsertContact stores a new contact and returns it with its ID assigned.
	InsertContact(ctx context.Context, contact *domain.Contact) (*domain.Contact, error)

	// UpdateContactState sets the saved node (nil clears it) and the last-active time.
	UpdateContactState(ctx context.Context, contactID string, nodeID *string, at time.Time) error
}

// FlowStore exposes the flow documents.
type FlowStore interface {
	// ActiveFlow returns domain.ErrNoActiveFlow if no flow is active.
	ActiveFlow(ctx context.Context) (*domain.Flow, error)

	// SaveFlow inserts or replaces a flow. Saving an active flow deactivates
	// every other flow.
	SaveFlow(ctx context.Context, flow *domain.Flow) (*domain.Flow, error)
}

// MessageLogStore is the append-only message audit trail.
type MessageLogStore interface {
	AppendMessageLog(ctx context.Context, entry *domain.MessageLog) error

	// RecentLogs returns at most limit entries for the contact, newest first.
	RecentLogs(ctx context.Context, contactID string, limit int) ([]domain.MessageLog, error)
}

// Store is the full document store the engine depends on.
type Store interface {
	ContactStore
	FlowStore
	MessageLogStore
}
