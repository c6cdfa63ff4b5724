package runtime

import (
	"context"
	"errors"

	"github.com/chatflow-ai/chatflow/pkg/domain"
)

// nodeKind produces the reply text for one kind of node.
// The set of kinds is closed: see kindOf.
type nodeKind interface {
	reply(ctx context.Context, x *Executor, node domain.Node, contact *domain.Contact) (string, error)
}

func kindOf(nodeType string) nodeKind {
	switch nodeType {
	case domain.NodeTypeText:
		return textKind{}
	case domain.NodeTypeAI:
		return aiKind{}
	default:
		return passKind{}
	}
}

// textKind sends the node's literal message. An empty message sends nothing.
type textKind struct{}

func (textKind) reply(_ context.Context, _ *Executor, node domain.Node, _ *domain.Contact) (string, error) {
	return node.String(domain.DataKeyMessage), nil
}

var errNoAI = errors.New("ai service not configured")

// aiKind asks the AI service to answer the node's prompt given the chat history.
type aiKind struct{}

func (aiKind) reply(ctx context.Context, x *Executor, node domain.Node, contact *domain.Contact) (string, error) {
	history, err := x.history.Fetch(ctx, contact.ID, 0)
	if err != nil {
		return "", err
	}
	if x.ai == nil {
		return "", &UpstreamError{Service: ServiceAI, NodeID: node.ID, Err: errNoAI}
	}

	callCtx, cancel := withTimeout(ctx, x.aiTimeout)
	defer cancel()

	text, err := x.ai.Complete(callCtx, node.String(domain.DataKeyPrompt), history)
	if err != nil {
		return "", &UpstreamError{Service: ServiceAI, NodeID: node.ID, Err: err}
	}
	return text, nil
}

// passKind is the default arm for unknown node types: no reply, routing only.
type passKind struct{}

func (passKind) reply(context.Context, *Executor, domain.Node, *domain.Contact) (string, error) {
	return "", nil
}
