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

// Default upstream call timeouts. A timeout is reported like any other upstream failure.
const (
	DefaultAITimeout       = 30 * time.Second
	DefaultDeliveryTimeout = 10 * time.Second
)

var errNoDelivery = errors.New("delivery service not configured")

// Execution is the result of running one node.
type Execution struct {
	// Reply is the text produced by the node; empty means nothing was sent.
	Reply string
	// NextNodeID is the target of the node's first outgoing edge, nil at a dead end.
	NextNodeID *string
	// Delivered reports whether the delivery service accepted the reply.
	Delivered bool
	// UpstreamErr holds an AI or delivery failure. It never stops the advance.
	UpstreamErr error
}

// Executor runs a single node: it produces the reply, sends it, logs it and
// computes the next position.
type Executor struct {
	logs     ports.MessageLogStore
	history  *History
	ai       ports.AIService
	delivery ports.DeliveryService

	aiTimeout       time.Duration
	deliveryTimeout time.Duration

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor creates an executor with default timeouts and no hooks.
func NewExecutor(logs ports.MessageLogStore, ai ports.AIService, delivery ports.DeliveryService) *Executor {
	return &Executor{
		logs:            logs,
		history:         NewHistory(logs, DefaultHistoryLimit),
		ai:              ai,
		delivery:        delivery,
		aiTimeout:       DefaultAITimeout,
		deliveryTimeout: DefaultDeliveryTimeout,
		logger:          logging.NewNop(),
		now:             time.Now,
	}
}

// Execute runs node for contact. Upstream failures are recorded in the returned
// Execution; only storage failures are returned as errors.
func (x *Executor) Execute(ctx context.Context, node domain.Node, contact *domain.Contact, g *graph.Graph) (Execution, error) {
	var exec Execution

	reply, err := kindOf(node.Type).reply(ctx, x, node, contact)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return Execution{}, err
		}
		exec.UpstreamErr = err
		x.logger.Warn("node reply failed",
			"node_id", node.ID,
			"node_type", node.Type,
			"contact_id", contact.ID,
			"err", err,
		)
		x.emitUpstream(ctx, domain.EventUpstreamError, ServiceAI, node.ID, contact.ID, err)
	}

	if reply != "" {
		exec.Reply = reply
		exec.Delivered = x.deliver(ctx, node, contact, reply, &exec)

		// Logged as sent whatever the transport said: the channel is fire-and-forget.
		if err := x.logs.AppendMessageLog(ctx, &domain.MessageLog{
			ContactID:  contact.ID,
			FromNumber: contact.PhoneNumber,
			Direction:  domain.DirectionOutbound,
			Text:       reply,
			Timestamp:  x.now(),
		}); err != nil {
			return Execution{}, storageErr("append outbound log", err)
		}
	}

	exec.NextNodeID = g.Next(node.ID)
	return exec, nil
}

func (x *Executor) deliver(ctx context.Context, node domain.Node, contact *domain.Contact, text string, exec *Execution) bool {
	var err error
	if x.delivery == nil {
		err = errNoDelivery
	} else {
		callCtx, cancel := withTimeout(ctx, x.deliveryTimeout)
		err = x.delivery.Send(callCtx, contact.PhoneNumber, text)
		cancel()
	}
	if err == nil {
		return true
	}

	upErr := &UpstreamError{Service: ServiceDelivery, NodeID: node.ID, Err: err}
	if exec.UpstreamErr == nil {
		exec.UpstreamErr = upErr
	} else {
		exec.UpstreamErr = errors.Join(exec.UpstreamErr, upErr)
	}
	x.logger.Warn("delivery failed, message logged as sent",
		"node_id", node.ID,
		"contact_id", contact.ID,
		"delivery_failed", true,
		"err", err,
	)
	x.emitUpstream(ctx, domain.EventDeliveryFailed, ServiceDelivery, node.ID, contact.ID, upErr)
	return false
}

func (x *Executor) emitUpstream(ctx context.Context, typ domain.EventType, service, nodeID, contactID string, err error) {
	hook := x.hooks.OnUpstreamError
	if typ == domain.EventDeliveryFailed {
		hook = x.hooks.OnDeliveryFailed
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.UpstreamEvent{
		EventBase: domain.EventBase{Timestamp: x.now(), Type: typ, ContactID: contactID},
		NodeID:    nodeID,
		Service:   service,
		Err:       err,
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
