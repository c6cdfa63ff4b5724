package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chatflow-ai/chatflow/internal/graph"
	"github.com/chatflow-ai/chatflow/internal/logging"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
)

// Serializer runs fn while holding an exclusive lock for key.
// session.Manager implements it.
type Serializer interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Engine is the flow runner: it turns one inbound message into at most one
// executed node and a persisted contact position.
type Engine struct {
	store      ports.Store
	executor   *Executor
	serializer Serializer

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time

	historyLimit    int
	aiTimeout       time.Duration
	deliveryTimeout time.Duration
	batchMode       BatchMode
}

// NewEngine creates a new engine with its collaborators.
// ai and delivery may be nil; calls to them then fail as upstream errors.
func NewEngine(store ports.Store, ai ports.AIService, delivery ports.DeliveryService, opts ...EngineOption) *Engine {
	e := &Engine{
		store:           store,
		logger:          logging.NewNop(),
		now:             time.Now,
		historyLimit:    DefaultHistoryLimit,
		aiTimeout:       DefaultAITimeout,
		deliveryTimeout: DefaultDeliveryTimeout,
		batchMode:       BatchFirst,
	}
	for _, opt := range opts {
		opt(e)
	}

	x := NewExecutor(store, ai, delivery)
	x.history = NewHistory(store, e.historyLimit)
	x.aiTimeout = e.aiTimeout
	x.deliveryTimeout = e.deliveryTimeout
	x.hooks = e.hooks
	x.logger = e.logger
	x.now = e.now
	e.executor = x

	return e
}

// BatchMode returns the configured batch handling.
func (e *Engine) BatchMode() BatchMode { return e.batchMode }

// HandleWebhook processes a webhook payload according to the batch mode.
// In BatchAll mode processing stops at the first error; the outcomes gathered
// so far are returned with it.
func (e *Engine) HandleWebhook(ctx context.Context, payload domain.WebhookPayload) ([]*domain.Outcome, error) {
	if len(payload.Messages) == 0 {
		return nil, domain.ErrEmptyPayload
	}

	msgs := payload.Messages
	if e.batchMode != BatchAll {
		if len(msgs) > 1 {
			e.logger.Debug("webhook batch truncated to first message", "dropped", len(msgs)-1)
		}
		msgs = msgs[:1]
	}

	outcomes := make([]*domain.Outcome, 0, len(msgs))
	for _, msg := range msgs {
		out, err := e.HandleMessage(ctx, msg)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// HandleMessage processes exactly one inbound message.
// Only storage failures (domain.ErrStorageUnavailable) and lock or context
// failures are returned as errors.
func (e *Engine) HandleMessage(ctx context.Context, msg domain.InboundMessage) (*domain.Outcome, error) {
	if e.serializer == nil {
		return e.process(ctx, msg)
	}

	var out *domain.Outcome
	err := e.serializer.WithLock(ctx, msg.From, func(ctx context.Context) error {
		var err error
		out, err = e.process(ctx, msg)
		return err
	})
	return out, err
}

func (e *Engine) process(ctx context.Context, msg domain.InboundMessage) (*domain.Outcome, error) {
	// 1. Contact (implicit onboarding)
	contact, err := e.contact(ctx, msg.From)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With("contact_id", contact.ID)

	// 2. Inbound log, always
	if err := e.store.AppendMessageLog(ctx, &domain.MessageLog{
		ContactID:  contact.ID,
		FromNumber: msg.From,
		Direction:  domain.DirectionInbound,
		Text:       msg.Body,
		Timestamp:  e.now(),
	}); err != nil {
		return nil, storageErr("append inbound log", err)
	}
	e.emitMessageReceived(ctx, contact)

	// 3. Active flow
	flow, err := e.store.ActiveFlow(ctx)
	if errors.Is(err, domain.ErrNoActiveFlow) {
		logger.Warn("no active flow for inbound message", "from", msg.From)
		return e.idle(ctx, contact, domain.ReasonNoActiveFlow), nil
	}
	if err != nil {
		return nil, storageErr("get active flow", err)
	}

	// 4. Resolve
	g := graph.Load(flow.Data)
	node, ok := Resolve(contact, g)
	if !ok {
		logger.Warn("active flow has no trigger node", "flow_id", flow.ID, "flow", flow.Name)
		return e.idle(ctx, contact, domain.ReasonNoTriggerNode), nil
	}

	// 5. Execute
	start := e.now()
	e.emitNodeEnter(ctx, contact, node)
	exec, err := e.executor.Execute(ctx, node, contact, g)
	if err != nil {
		return nil, err
	}

	// 6. Advance, even to a dead end
	if err := e.store.UpdateContactState(ctx, contact.ID, exec.NextNodeID, e.now()); err != nil {
		return nil, storageErr("update contact state", err)
	}
	e.emitNodeLeave(ctx, contact, node, exec.NextNodeID, e.now().Sub(start))

	logger.Info("node executed",
		"node_id", node.ID,
		"node_type", node.Type,
		"from_node_id", contact.Position(),
		"next_node_id", deref(exec.NextNodeID),
		"replied", exec.Reply != "",
		"delivered", exec.Delivered,
	)

	return &domain.Outcome{
		Status:      domain.StatusAdvanced,
		ContactID:   contact.ID,
		NodeID:      node.ID,
		NextNodeID:  exec.NextNodeID,
		Reply:       exec.Reply,
		Delivered:   exec.Delivered,
		UpstreamErr: exec.UpstreamErr,
	}, nil
}

// contact finds the contact for phone, creating it on first contact.
func (e *Engine) contact(ctx context.Context, phone string) (*domain.Contact, error) {
	contact, err := e.store.ContactByPhone(ctx, phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, domain.ErrContactNotFound) {
		return nil, storageErr("get contact", err)
	}

	contact, err = e.store.InsertContact(ctx, domain.NewLead(phone, e.now()))
	if errors.Is(err, domain.ErrContactExists) {
		// Another replica onboarded the same number first.
		contact, err = e.store.ContactByPhone(ctx, phone)
	}
	if err != nil {
		return nil, storageErr("insert contact", err)
	}
	e.logger.Info("contact created", "contact_id", contact.ID, "phone", phone)
	return contact, nil
}

func (e *Engine) idle(ctx context.Context, contact *domain.Contact, reason domain.Reason) *domain.Outcome {
	if e.hooks.OnIdle != nil {
		e.hooks.OnIdle(ctx, &domain.IdleEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventIdle, ContactID: contact.ID},
			Reason:    reason,
		})
	}
	return &domain.Outcome{
		Status:     domain.StatusIdle,
		Reason:     reason,
		ContactID:  contact.ID,
		NextNodeID: contact.CurrentFlowNodeID,
	}
}

func (e *Engine) emitMessageReceived(ctx context.Context, contact *domain.Contact) {
	if e.hooks.OnMessageReceived == nil {
		return
	}
	e.hooks.OnMessageReceived(ctx, &domain.MessageEvent{
		EventBase:   domain.EventBase{Timestamp: e.now(), Type: domain.EventMessageReceived, ContactID: contact.ID},
		PhoneNumber: contact.PhoneNumber,
	})
}

func (e *Engine) emitNodeEnter(ctx context.Context, contact *domain.Contact, node domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeEnter, ContactID: contact.ID},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, contact *domain.Contact, node domain.Node, next *string, d time.Duration) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase:  domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeLeave, ContactID: contact.ID},
		NodeID:     node.ID,
		NodeType:   node.Type,
		NextNodeID: deref(next),
		Duration:   d,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
