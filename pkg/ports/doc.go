/*
Package ports defines the driven ports (interfaces) for the chatflow engine.

These interfaces decouple the flow execution core from the document store and
from the external services it talks to, so the engine can run against MongoDB
in production and an in-memory store in tests.

# Key Interfaces

  - ContactStore, FlowStore, MessageLogStore (together: Store): the document store.
  - DeliveryService: sends a text message to a phone number.
  - AIService: produces a completion from a prompt and the chat history.
  - DistributedLocker: serializes work on one contact across replicas.
*/
package ports
