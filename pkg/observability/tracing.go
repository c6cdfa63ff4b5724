package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceHooks returns hooks that annotate the span carried by the event's context.
// Without a recording span they do nothing.
func TraceHooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMessageReceived: func(ctx context.Context, e *domain.MessageEvent) {
			trace.SpanFromContext(ctx).AddEvent("message_received", trace.WithAttributes(
				attribute.String("contact.id", e.ContactID),
			))
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			trace.SpanFromContext(ctx).AddEvent("node_enter", trace.WithAttributes(
				attribute.String("node.id", e.NodeID),
				attribute.String("node.type", e.NodeType),
			))
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			trace.SpanFromContext(ctx).AddEvent("node_leave", trace.WithAttributes(
				attribute.String("node.id", e.NodeID),
				attribute.String("node.next_id", e.NextNodeID),
				attribute.Int64("node.duration_ms", e.Duration.Milliseconds()),
			))
		},
		OnUpstreamError: func(ctx context.Context, e *domain.UpstreamEvent) {
			if e.Err == nil {
				return
			}
			trace.SpanFromContext(ctx).RecordError(e.Err, trace.WithAttributes(
				attribute.String("upstream.service", e.Service),
				attribute.String("node.id", e.NodeID),
			))
		},
		OnDeliveryFailed: func(ctx context.Context, e *domain.UpstreamEvent) {
			trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("delivery.failed", true))
		},
		OnIdle: func(ctx context.Context, e *domain.IdleEvent) {
			trace.SpanFromContext(ctx).AddEvent("idle", trace.WithAttributes(
				attribute.String("idle.reason", string(e.Reason)),
			))
		},
	}
}

// NewTracerProvider batches spans to an OTLP/gRPC collector. endpoint is
// either host:port or a URL; an http:// URL disables TLS.
func NewTracerProvider(ctx context.Context, serviceName, version, endpoint string, insecure bool) (*sdktrace.TracerProvider, error) {
	var opts []otlptracegrpc.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracegrpc.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}
