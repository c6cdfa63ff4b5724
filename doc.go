/*
Package chatflow is a conversation flow engine for WhatsApp-style business messaging.

An administrator authors one active flow: a graph of nodes (static text or
AI-generated replies) joined by edges. Every inbound customer message advances
that customer's position through the graph by exactly one node. The engine
sends the node's reply, logs both directions of the conversation, and
persists the new position.

# Concept

The engine is hexagonal. The flow runner depends only on ports:

  - ports.Store: contacts, flows and the message log (memory and MongoDB adapters).
  - ports.AIService: completions for AI nodes (OpenAI adapter, mocked stub).
  - ports.DeliveryService: the outbound channel (WhatsApp Cloud API, logging stub).

Messages from the same contact are processed one at a time; a Redis locker
extends that guarantee across replicas.

# Usage

	store := memory.NewStore()

	b := dsl.New()
	b.Add("welcome").Text("Hi! How can we help?").Go("assist")
	b.Add("assist").AI("You are a helpful assistant.")
	_, _ = store.SaveFlow(ctx, b.Flow("Welcome", true))

	eng, err := chatflow.New(store)
	if err != nil {
		log.Fatal(err)
	}

	out, err := eng.HandleMessage(ctx, domain.InboundMessage{From: "+15550001111", Body: "hello"})
	// out.Reply == "Hi! How can we help?"

Failures of the AI or delivery service never stop the contact from advancing;
they are reported on the Outcome and through lifecycle hooks. Storage failures
abort the message and are returned as errors wrapping domain.ErrStorageUnavailable.
*/
package chatflow
