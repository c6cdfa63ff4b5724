package runtime

import (
	"context"
	"fmt"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
)

// DefaultHistoryLimit is the number of log entries handed to the AI service.
const DefaultHistoryLimit = 10

// History reads a contact's recent messages as AI chat context.
type History struct {
	logs  ports.MessageLogStore
	limit int
}

// NewHistory creates a history provider. A limit <= 0 uses DefaultHistoryLimit.
func NewHistory(logs ports.MessageLogStore, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{logs: logs, limit: limit}
}

// Limit returns the configured cap.
func (h *History) Limit() int { return h.limit }

// Fetch returns at most limit messages for the contact, oldest first.
// A limit <= 0 uses the provider's configured cap.
func (h *History) Fetch(ctx context.Context, contactID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = h.limit
	}
	logs, err := h.logs.RecentLogs(ctx, contactID, limit)
	if err != nil {
		return nil, storageErr("read chat history", err)
	}
	if len(logs) > limit {
		logs = logs[:limit]
	}

	// Store order is newest first.
	history := make([]domain.ChatMessage, len(logs))
	for i, entry := range logs {
		role := domain.RoleAssistant
		if entry.Direction == domain.DirectionInbound {
			role = domain.RoleUser
		}
		history[len(logs)-1-i] = domain.ChatMessage{Role: role, Content: entry.Text}
	}
	return history, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}
