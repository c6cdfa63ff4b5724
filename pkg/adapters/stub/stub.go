// Package stub provides logging stand-ins for the AI and delivery collaborators.
// They let the engine run end to end without external credentials.
package stub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chatflow-ai/chatflow/internal/logging"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
)

var (
	_ ports.AIService       = (*AI)(nil)
	_ ports.DeliveryService = (*Delivery)(nil)
)

// AI answers every prompt with a canned reply.
type AI struct {
	// Err, when set, is returned instead of a reply.
	Err    error
	logger *slog.Logger
}

// NewAI creates a stub AI. A nil logger discards output.
func NewAI(logger *slog.Logger) *AI {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AI{logger: logger}
}

// Complete returns "This is a mocked AI response to your prompt: '<prompt>'".
// An empty prompt is rendered as "...".
func (a *AI) Complete(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.Err != nil {
		return "", a.Err
	}
	a.logger.Info("Mock AI call", "prompt", prompt, "history_len", len(history))
	if prompt == "" {
		prompt = "..."
	}
	return fmt.Sprintf("This is a mocked AI response to your prompt: '%s'", prompt), nil
}

// Sent is one recorded delivery.
type Sent struct {
	Phone string
	Text  string
}

// Delivery logs and records every message instead of sending it.
type Delivery struct {
	// Err, when set, is returned after the message is recorded.
	Err error

	mu     sync.Mutex
	sent   []Sent
	logger *slog.Logger
}

// NewDelivery creates a stub delivery channel. A nil logger discards output.
func NewDelivery(logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Delivery{logger: logger}
}

// Send records the message.
func (d *Delivery) Send(ctx context.Context, phone, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.sent = append(d.sent, Sent{Phone: phone, Text: text})
	d.mu.Unlock()

	d.logger.Info("Mock WhatsApp send", "to", phone, "text", text)
	return d.Err
}

// Sent returns a copy of every recorded delivery.
func (d *Delivery) Sent() []Sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Sent(nil), d.sent...)
}
