package ports

import (
	"context"

	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// DeliveryService sends outbound text on the messaging channel.
// The engine treats it as fire-and-forget: errors are reported, never retried.
type DeliveryService interface {
	Send(ctx context.Context, phoneNumber, text string) error
}

// AIService generates a reply for an AI node.
// history is ordered oldest first.
type AIService interface {
	Complete(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error)
}

// DeliveryFunc adapts a function to DeliveryService.
type DeliveryFunc func(ctx context.Context, phoneNumber, text string) error

func (f DeliveryFunc) Send(ctx context.Context, phoneNumber, text string) error {
	return f(ctx, phoneNumber, text)
}

// AIFunc adapts a function to AIService.
type AIFunc func(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error)

func (f AIFunc) Complete(ctx context.Context, prompt string, history []domain.ChatMessage) (string, error) {
	return f(ctx, prompt, history)
}
