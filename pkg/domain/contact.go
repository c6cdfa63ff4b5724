package domain

import "time"

// TagNewLead is attached to contacts created implicitly by an inbound message.
const TagNewLead = "new_lead"

// Contact is a customer talking to the business, keyed by phone number.
type Contact struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PhoneNumber string   `json:"phone_number"`
	Tags        []string `json:"tags"`

	// CurrentFlowNodeID is the node the contact last stopped at, in whichever
	// flow was active at the time. Nil means "start from the trigger node".
	CurrentFlowNodeID *string `json:"current_flow_node_id"`

	LastActive time.Time `json:"last_active"`
}

// NewLead builds the contact created on first contact from an unknown number.
func NewLead(phone string, now time.Time) *Contact {
	return &Contact{
		Name:        "WA " + phone,
		PhoneNumber: phone,
		Tags:        []string{TagNewLead},
		LastActive:  now,
	}
}

// Position returns the saved node id, or "" when none is set.
func (c *Contact) Position() string {
	if c == nil || c.CurrentFlowNodeID == nil {
		return ""
	}
	return *c.CurrentFlowNodeID
}
