package observability

import (
	"context"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Messages         prometheus.Counter
	NodeVisits       *prometheus.CounterVec
	NodeDuration     *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	Idle             *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatflow_messages_received_total",
			Help: "Inbound messages processed by the engine.",
		}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_node_visits_total",
			Help: "Node executions by node type.",
		}, []string{"node_type"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatflow_node_duration_seconds",
			Help:    "Time from node entry to persisted advance.",
			Buckets: prometheus.DefBuckets,
		}, []string{"node_type"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_upstream_errors_total",
			Help: "AI or delivery failures that did not stop the advance.",
		}, []string{"service"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatflow_delivery_failures_total",
			Help: "Replies logged as sent but not delivered.",
		}),
		Idle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_idle_total",
			Help: "Messages that ran no node, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.Messages, m.NodeVisits, m.NodeDuration, m.UpstreamErrors, m.DeliveryFailures, m.Idle)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMessageReceived: func(ctx context.Context, e *domain.MessageEvent) {
			m.Messages.Inc()
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(nodeTypeLabel(e.NodeType)).Inc()
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeDuration.WithLabelValues(nodeTypeLabel(e.NodeType)).Observe(e.Duration.Seconds())
		},
		OnUpstreamError: func(ctx context.Context, e *domain.UpstreamEvent) {
			m.UpstreamErrors.WithLabelValues(e.Service).Inc()
		},
		OnDeliveryFailed: func(ctx context.Context, e *domain.UpstreamEvent) {
			m.UpstreamErrors.WithLabelValues(e.Service).Inc()
			m.DeliveryFailures.Inc()
		},
		OnIdle: func(ctx context.Context, e *domain.IdleEvent) {
			m.Idle.WithLabelValues(string(e.Reason)).Inc()
		},
	}
}

// UnknownNodeType labels nodes of any type the engine does not reply for.
const UnknownNodeType = "unknown"

// nodeTypeLabel maps every type other than text and AI to UnknownNodeType.
func nodeTypeLabel(t string) string {
	switch t {
	case domain.NodeTypeText, domain.NodeTypeAI:
		return t
	}
	return UnknownNodeType
}
