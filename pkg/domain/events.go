package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventMessageReceived EventType = "message_received"
	EventNodeEnter       EventType = "node_enter"
	EventNodeLeave       EventType = "node_leave"
	EventUpstreamError   EventType = "upstream_error"
	EventDeliveryFailed  EventType = "delivery_failed"
	EventIdle            EventType = "idle"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ContactID string    `json:"contact_id"`
}

// MessageEvent is emitted once per inbound message, after it has been logged.
type MessageEvent struct {
	EventBase
	PhoneNumber string `json:"phone_number"`
}

// NodeEvent represents entry into or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID     string        `json:"node_id"`
	NodeType   string        `json:"node_type"`
	NextNodeID string        `json:"next_node_id,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// UpstreamEvent describes a failed call to the AI or delivery service.
type UpstreamEvent struct {
	EventBase
	NodeID  string `json:"node_id"`
	Service string `json:"service"` // "ai" or "delivery"
	Err     error  `json:"-"`
}

// IdleEvent is emitted when a message ends without executing a node.
type IdleEvent struct {
	EventBase
	Reason Reason `json:"reason"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every hook is optional.
type LifecycleHooks struct {
	OnMessageReceived func(context.Context, *MessageEvent)
	OnNodeEnter       func(context.Context, *NodeEvent)
	OnNodeLeave       func(context.Context, *NodeEvent)
	OnUpstreamError   func(context.Context, *UpstreamEvent)
	OnDeliveryFailed  func(context.Context, *UpstreamEvent)
	OnIdle            func(context.Context, *IdleEvent)
}

// Merge returns hooks that call h first and then other, for each event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnMessageReceived: chain(h.OnMessageReceived, other.OnMessageReceived),
		OnNodeEnter:       chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:       chain(h.OnNodeLeave, other.OnNodeLeave),
		OnUpstreamError:   chain(h.OnUpstreamError, other.OnUpstreamError),
		OnDeliveryFailed:  chain(h.OnDeliveryFailed, other.OnDeliveryFailed),
		OnIdle:            chain(h.OnIdle, other.OnIdle),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
