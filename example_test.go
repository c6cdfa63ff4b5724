package chatflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/chatflow-ai/chatflow"
	"github.com/chatflow-ai/chatflow/pkg/adapters/memory"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/dsl"
	"github.com/chatflow-ai/chatflow/pkg/ports"
)

// ExampleNew_memory runs a two-step flow against the in-memory store. Each
// inbound message runs one node; after the last node the contact has no
// position, so the next message starts again at the trigger node.
func ExampleNew_memory() {
	b := dsl.New()
	b.Add("greet").Text("Hi! How can we help?").Go("assist")
	b.Add("assist").AI("Answer briefly.")

	ctx := context.Background()
	store := memory.NewStore()
	if _, err := store.SaveFlow(ctx, b.Flow("welcome", true)); err != nil {
		log.Fatal(err)
	}

	printer := ports.DeliveryFunc(func(_ context.Context, to, text string) error {
		fmt.Printf("-> %s\n", text)
		return nil
	})
	engine, err := chatflow.New(store, chatflow.WithDelivery(printer))
	if err != nil {
		log.Fatal(err)
	}

	for _, body := range []string{"hello", "what are your hours?", "thanks"} {
		out, err := engine.HandleMessage(ctx, domain.InboundMessage{From: "+15551234567", Body: body})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("ran %s\n", out.NodeID)
	}
	// Output:
	// -> Hi! How can we help?
	// ran greet
	// -> This is a mocked AI response to your prompt: 'Answer briefly.'
	// ran assist
	// -> Hi! How can we help?
	// ran greet
}
