package observability

import (
	"context"
	"log/slog"

	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// LogHooks returns hooks that write one audit line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMessageReceived: func(ctx context.Context, e *domain.MessageEvent) {
			logger.Debug("message_received", "contact_id", e.ContactID, "phone", e.PhoneNumber)
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("node_enter", "contact_id", e.ContactID, "node_id", e.NodeID, "type", e.NodeType)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("node_leave",
				"contact_id", e.ContactID,
				"node_id", e.NodeID,
				"next_node_id", e.NextNodeID,
				"duration", e.Duration,
			)
		},
		OnUpstreamError: func(ctx context.Context, e *domain.UpstreamEvent) {
			logger.Warn("upstream_error", "contact_id", e.ContactID, "node_id", e.NodeID, "service", e.Service, "error", e.Err)
		},
		OnDeliveryFailed: func(ctx context.Context, e *domain.UpstreamEvent) {
			logger.Warn("delivery_failed", "contact_id", e.ContactID, "node_id", e.NodeID, "error", e.Err)
		},
		OnIdle: func(ctx context.Context, e *domain.IdleEvent) {
			logger.Info("idle", "contact_id", e.ContactID, "reason", e.Reason)
		},
	}
}
