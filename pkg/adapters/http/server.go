// Package http exposes the engine as the messaging provider's webhook endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chatflow-ai/chatflow/internal/logging"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// WebhookPath is the route the messaging provider posts to.
const WebhookPath = "/api/webhook/whatsapp"

// Engine is the part of the flow engine the transport needs.
type Engine interface {
	HandleWebhook(ctx context.Context, payload domain.WebhookPayload) ([]*domain.Outcome, error)
}

// Server routes webhook requests to the engine.
type Server struct {
	engine    Engine
	validate  *Validator
	logger    *slog.Logger
	origin    string
	gatherer  prometheus.Gatherer
	tracer    trace.TracerProvider
	maxBodyKB int64
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllowedOrigin restricts CORS to a single origin. Empty allows all origins.
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) { s.origin = origin }
}

// WithMetrics serves the gatherer's metrics on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithTracerProvider records a server span for every request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp }
}

// WithMaxBodyKB caps webhook request bodies.
func WithMaxBodyKB(kb int64) Option {
	return func(s *Server) {
		if kb > 0 {
			s.maxBodyKB = kb
		}
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		engine:    engine,
		validate:  NewValidator(),
		logger:    logging.NewNop(),
		maxBodyKB: 256,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.origin == "" {
		s.logger.Warn("CORS is configured to allow all origins. Do not run in production.")
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	if s.tracer != nil {
		r.Use(Tracing(s.tracer))
	}
	r.Use(middleware.Recoverer)
	r.Use(CORS(s.origin))

	r.Get("/", s.Root)
	r.Post(WebhookPath, s.Webhook)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type statusResponse struct {
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	MessageProcessed bool   `json:"message_processed,omitempty"`
	Processed        int    `json:"processed,omitempty"`
}

type errorResponse struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	// Committed counts leading batch messages fully processed before the
	// failure. Resending them would advance those contacts twice.
	Committed int `json:"committed,omitempty"`
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "ChatFlow AI backend is running."})
}

// Webhook handles POST /api/webhook/whatsapp.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", RequestIDFrom(r.Context()))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyKB<<10)
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Webhook: invalid request body", "error", err)
		s.fail(w, r, http.StatusUnprocessableEntity, "invalid request body", nil)
		return
	}
	if details := s.validate.Struct(req); len(details) > 0 {
		logger.Warn("Webhook: payload validation failed", "details", details)
		s.fail(w, r, http.StatusUnprocessableEntity, "invalid payload", details)
		return
	}

	outcomes, err := s.engine.HandleWebhook(r.Context(), req.toDomain())
	if err != nil {
		status := statusFor(err)
		logger.Error("Webhook: processing failed", "error", err, "status", status, "committed", len(outcomes))
		writeJSON(w, status, errorResponse{
			Error:     http.StatusText(status),
			RequestID: RequestIDFrom(r.Context()),
			Committed: len(outcomes),
		})
		return
	}

	writeJSON(w, http.StatusOK, summarize(outcomes))
}

// summarize reports the first message's outcome, or a processed count for batches.
func summarize(outcomes []*domain.Outcome) statusResponse {
	resp := statusResponse{Status: "ok"}
	processed := 0
	for _, o := range outcomes {
		if o.Processed() {
			processed++
		}
	}

	if processed > 0 {
		resp.MessageProcessed = true
		if len(outcomes) > 1 {
			resp.Processed = processed
		}
		return resp
	}
	if len(outcomes) > 0 {
		switch outcomes[0].Reason {
		case domain.ReasonNoActiveFlow:
			resp.Message = "No active flow."
		case domain.ReasonNoTriggerNode:
			resp.Message = "No trigger node found."
		}
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyPayload):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string, details []string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Details:   details,
		RequestID: RequestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
