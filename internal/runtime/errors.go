package runtime

import (
	"fmt"

	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// Upstream services named in errors, events and metrics.
const (
	ServiceAI       = "ai"
	ServiceDelivery = "delivery"
)

// UpstreamError is returned when the AI or delivery service fails or times out.
// It matches domain.ErrUpstream with errors.Is.
type UpstreamError struct {
	Service string
	NodeID  string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s call failed at node '%s': %v", e.Service, e.NodeID, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{domain.ErrUpstream, e.Err}
}
