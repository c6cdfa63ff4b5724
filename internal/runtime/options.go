package runtime

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// BatchMode controls how many messages of one webhook payload are processed.
type BatchMode string

const (
	// BatchFirst processes only the first message of a payload.
	BatchFirst BatchMode = "first"
	// BatchAll processes every message of a payload, in order.
	BatchAll BatchMode = "all"
)

// ParseBatchMode accepts "first", "all" or "" (first).
func ParseBatchMode(s string) (BatchMode, error) {
	switch BatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", BatchFirst:
		return BatchFirst, nil
	case BatchAll:
		return BatchAll, nil
	}
	return "", fmt.Errorf("invalid batch mode %q (want %q or %q)", s, BatchFirst, BatchAll)
}

// EngineOption defines a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithSerializer runs each message under a per-contact lock keyed by phone number.
func WithSerializer(s Serializer) EngineOption {
	return func(e *Engine) {
		e.serializer = s
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithHistoryLimit sets how many log entries an AI node receives as context.
func WithHistoryLimit(limit int) EngineOption {
	return func(e *Engine) {
		e.historyLimit = limit
	}
}

// WithAITimeout bounds each AI completion call. Zero disables the bound.
func WithAITimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.aiTimeout = d
	}
}

// WithDeliveryTimeout bounds each delivery call. Zero disables the bound.
func WithDeliveryTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.deliveryTimeout = d
	}
}

// WithBatchMode selects first-only or process-all handling of webhook batches.
func WithBatchMode(mode BatchMode) EngineOption {
	return func(e *Engine) {
		e.batchMode = mode
	}
}
