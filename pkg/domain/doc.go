/*
Package domain contains the core domain models of the chatflow engine.

It defines the conversation graph (Flow, Node, Edge), the durable per-customer
entity (Contact) and the append-only message audit trail (MessageLog). This
package is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Flow: An administrator-authored conversation graph. At most one is active.
  - Node: A single step of a flow (static text or AI-generated text).
  - Edge: A directed transition from one node to the next.
  - Contact: A customer, keyed by phone number, holding its saved flow position.
  - MessageLog: One inbound or outbound message, the source of chat history.
  - Outcome: What the engine did with one inbound message.
*/
package domain
