package domain

// Status is the terminal state of the engine for one inbound message.
type Status string

const (
	// StatusIdle means no node ran: no active flow, or no resolvable entry node.
	StatusIdle Status = "idle"
	// StatusAdvanced means a node ran and the contact's position was persisted.
	StatusAdvanced Status = "advanced"
)

// Reason explains an idle outcome.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoActiveFlow  Reason = "no_active_flow"
	ReasonNoTriggerNode Reason = "no_trigger_node"
)

// Outcome reports what the engine did with one inbound message.
type Outcome struct {
	Status    Status `json:"status"`
	Reason    Reason `json:"reason,omitempty"`
	ContactID string `json:"contact_id"`

	// NodeID is the node that ran; empty when idle.
	NodeID     string  `json:"node_id,omitempty"`
	NextNodeID *string `json:"next_node_id"`

	Reply     string `json:"reply,omitempty"`
	Delivered bool   `json:"delivered"`

	// UpstreamErr holds an AI or delivery failure that did not stop the advance.
	UpstreamErr error `json:"-"`
}

// Processed reports whether a node ran for the message.
func (o *Outcome) Processed() bool {
	return o != nil && o.Status == StatusAdvanced
}
