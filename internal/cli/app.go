// Package cli wires configuration into a running chatflow service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chatflow-ai/chatflow"
	"github.com/chatflow-ai/chatflow/internal/config"
	"github.com/chatflow-ai/chatflow/internal/runtime"
	httpadapter "github.com/chatflow-ai/chatflow/pkg/adapters/http"
	"github.com/chatflow-ai/chatflow/pkg/adapters/memory"
	"github.com/chatflow-ai/chatflow/pkg/adapters/mongo"
	"github.com/chatflow-ai/chatflow/pkg/adapters/openai"
	"github.com/chatflow-ai/chatflow/pkg/adapters/redis"
	"github.com/chatflow-ai/chatflow/pkg/adapters/stub"
	"github.com/chatflow-ai/chatflow/pkg/adapters/whatsapp"
	"github.com/chatflow-ai/chatflow/pkg/observability"
	"github.com/chatflow-ai/chatflow/pkg/persistence/middleware"
	"github.com/chatflow-ai/chatflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a fully wired service: store, collaborators, engine and HTTP handler.
type App struct {
	Engine   *chatflow.Engine
	Store    ports.Store
	Handler  http.Handler
	Registry *prometheus.Registry

	closers []func(context.Context) error
}

// BuildApp connects the configured backends and assembles the engine.
// On error every resource opened so far is released.
func BuildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	batchMode, err := runtime.ParseBatchMode(cfg.Engine.BatchMode)
	if err != nil {
		return nil, err
	}

	app = &App{}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
			app = nil
		}
	}()

	// 1. Store
	store, err := app.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if app.Store, err = protectStore(store, cfg.Storage, logger); err != nil {
		return nil, err
	}

	// 2. Collaborators
	engineOpts := []chatflow.Option{
		chatflow.WithLogger(logger),
		chatflow.WithAI(newAI(cfg.OpenAI, logger)),
		chatflow.WithDelivery(newDelivery(cfg.WhatsApp, logger)),
		chatflow.WithSerialization(cfg.Engine.Serialize),
		chatflow.WithLockTTL(cfg.Engine.LockTTL),
		chatflow.WithBatchMode(batchMode),
		chatflow.WithTimeouts(cfg.Engine.AITimeout, cfg.Engine.DeliveryTimeout),
		chatflow.WithHistoryLimit(cfg.Engine.HistoryLimit),
	}

	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		engineOpts = append(engineOpts, chatflow.WithDistributedLocker(redis.NewLocker(client, cfg.Redis.Prefix)))
		logger.Info("Distributed contact lock enabled", "redis", cfg.Redis.Addr)
	}

	// 3. Observability
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(app.Registry)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	handlerOpts := []httpadapter.Option{
		httpadapter.WithLogger(logger),
		httpadapter.WithAllowedOrigin(cfg.ClientOrigin),
		httpadapter.WithMetrics(app.Registry),
	}

	if cfg.Tracing.Endpoint != "" {
		tp, err := observability.NewTracerProvider(ctx, cfg.Tracing.ServiceName, chatflow.Version, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, tp.Shutdown)
		hooks = hooks.Merge(observability.TraceHooks())
		handlerOpts = append(handlerOpts, httpadapter.WithTracerProvider(tp))
		logger.Info("Tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}
	engineOpts = append(engineOpts, chatflow.WithLifecycleHooks(hooks))

	// 4. Engine and transport
	app.Engine, err = chatflow.New(app.Store, engineOpts...)
	if err != nil {
		return nil, err
	}
	app.Handler = httpadapter.NewHandler(app.Engine, handlerOpts...)
	return app, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("Using in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	case config.StoreMongo:
		store, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		logger.Info("Connected to MongoDB", "database", cfg.Mongo.Database)
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// protectStore applies redaction and then encryption to stored message text.
func protectStore(store ports.Store, cfg config.StorageConfig, logger *slog.Logger) (ports.Store, error) {
	var mws []middleware.Middleware
	if len(cfg.RedactPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.RedactPatterns)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern: %w", err)
		}
		mws = append(mws, pii)
		logger.Info("Message redaction enabled", "patterns", len(cfg.RedactPatterns))
	}

	key, fallbacks, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    key,
			FallbackKeys: fallbacks,
		}))
		logger.Info("Message encryption enabled", "fallback_keys", len(fallbacks))
	}
	return middleware.Chain(store, mws...), nil
}

func newAI(cfg config.OpenAIConfig, logger *slog.Logger) ports.AIService {
	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, AI replies are mocked")
		return stub.NewAI(logger)
	}
	opts := []openai.Option{
		openai.WithLogger(logger),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithMaxTokens(cfg.MaxTokens),
		openai.WithModel(cfg.Model),
	}
	if cfg.CircuitBreaker {
		opts = append(opts, openai.WithCircuitBreaker(openai.DefaultBreakerConfig()))
	}
	return openai.New(cfg.APIKey, opts...)
}

func newDelivery(cfg config.WhatsAppConfig, logger *slog.Logger) ports.DeliveryService {
	if cfg.Token == "" {
		logger.Warn("WHATSAPP_TOKEN not set, outbound messages are only logged")
		return stub.NewDelivery(logger)
	}
	opts := []whatsapp.Option{whatsapp.WithLogger(logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, whatsapp.WithBaseURL(cfg.BaseURL))
	}
	return whatsapp.New(cfg.PhoneID, cfg.Token, opts...)
}

// Close releases backends in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
