/*
Package dsl provides a fluent Go API for building conversation flows.

It is an alternative to hand-writing the editor's nodes/edges JSON, useful for
seeding a store, tests, and generated flows.

Example usage:

	b := dsl.New()

	b.Add("welcome").
		Text("Hi! Thanks for reaching out.").
		Go("assist")

	b.Add("assist").
		AI("You are a helpful sales assistant. Keep answers short.")

	flow := b.Flow("Welcome", true)
	// store.SaveFlow(ctx, flow)

Declaration order is preserved: the first node added without an incoming
edge becomes the flow's trigger node.
*/
package dsl
