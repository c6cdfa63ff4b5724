package domain

import "time"

// Direction of a logged message, seen from the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Chat roles used when handing history to the AI service.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageLog is one append-only audit record of a message.
type MessageLog struct {
	ID         string    `json:"id"`
	ContactID  string    `json:"contact_id"`
	FromNumber string    `json:"from_number"`
	Direction  Direction `json:"direction"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatMessage is a history entry in the role/content shape AI providers expect.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InboundMessage is a single customer message delivered by the webhook.
type InboundMessage struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// WebhookPayload is the batch shape the messaging provider posts.
type WebhookPayload struct {
	Messages []InboundMessage `json:"messages"`
}
