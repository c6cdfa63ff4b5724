package chatflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chatflow-ai/chatflow/internal/logging"
	"github.com/chatflow-ai/chatflow/internal/runtime"
	"github.com/chatflow-ai/chatflow/pkg/adapters/stub"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
	"github.com/chatflow-ai/chatflow/pkg/session"
)

// BatchMode controls how many messages of one webhook payload are processed.
type BatchMode = runtime.BatchMode

// Batch modes.
const (
	BatchFirst = runtime.BatchFirst
	BatchAll   = runtime.BatchAll
)

// ErrNoStore is returned by New when no store is given.
var ErrNoStore = errors.New("chatflow: a store is required")

// Engine is the high-level entry point for the library.
// It wires the flow runner to its collaborators and the per-contact serializer.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager

	ai          ports.AIService
	delivery    ports.DeliveryService
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	serialize   bool
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithAI sets the AI completion service. Defaults to a mocked responder.
func WithAI(ai ports.AIService) Option {
	return func(e *Engine) { e.ai = ai }
}

// WithDelivery sets the outbound channel. Defaults to a logging stub.
func WithDelivery(d ports.DeliveryService) Option {
	return func(e *Engine) { e.delivery = d }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithDistributedLocker extends the per-contact lock across replicas.
func WithDistributedLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLockTTL sets the expiry of distributed contact locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.lockTTL = ttl }
}

// WithSerialization toggles per-contact serialization (on by default).
// Disabled, concurrent messages from one contact race and the last write wins.
func WithSerialization(enabled bool) Option {
	return func(e *Engine) { e.serialize = enabled }
}

// WithBatchMode selects first-only or process-all handling of webhook batches.
// BatchAll stops at the first failing message; earlier messages stay
// committed, so replaying the whole batch advances those contacts again.
func WithBatchMode(mode BatchMode) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithBatchMode(mode))
	}
}

// WithTimeouts bounds AI and delivery calls. Zero disables a bound.
func WithTimeouts(ai, delivery time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithAITimeout(ai), runtime.WithDeliveryTimeout(delivery))
	}
}

// WithHistoryLimit sets how many log entries an AI node receives as context.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithHistoryLimit(limit))
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// New initializes an Engine on store.
func New(store ports.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNoStore
	}

	eng := &Engine{
		serialize: true,
		lockTTL:   session.DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.ai == nil {
		eng.ai = stub.NewAI(eng.logger)
	}
	if eng.delivery == nil {
		eng.delivery = stub.NewDelivery(eng.logger)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
	}
	if eng.serialize {
		sessionOpts := []session.Option{
			session.WithLogger(eng.logger),
			session.WithLockTTL(eng.lockTTL),
		}
		if eng.locker != nil {
			sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
		}
		eng.sessions = session.NewManager(sessionOpts...)
		runtimeOpts = append(runtimeOpts, runtime.WithSerializer(eng.sessions))
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.runtime = runtime.NewEngine(store, eng.ai, eng.delivery, runtimeOpts...)
	return eng, nil
}

// HandleWebhook processes a provider payload according to the batch mode.
func (e *Engine) HandleWebhook(ctx context.Context, payload domain.WebhookPayload) ([]*domain.Outcome, error) {
	return e.runtime.HandleWebhook(ctx, payload)
}

// HandleMessage processes one inbound message.
func (e *Engine) HandleMessage(ctx context.Context, msg domain.InboundMessage) (*domain.Outcome, error) {
	return e.runtime.HandleMessage(ctx, msg)
}

// BatchMode returns the configured batch handling.
func (e *Engine) BatchMode() BatchMode {
	return e.runtime.BatchMode()
}

// ActiveLocks returns the number of contacts currently being processed.
// It is always zero when serialization is disabled.
func (e *Engine) ActiveLocks() int {
	if e.sessions == nil {
		return 0
	}
	return e.sessions.ActiveLocks()
}
