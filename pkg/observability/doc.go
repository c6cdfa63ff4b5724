/*
Package observability turns engine lifecycle events into metrics, audit logs and trace events.

Metrics.Hooks, LogHooks and TraceHooks all return domain.LifecycleHooks; combine them
with LifecycleHooks.Merge and pass the result to the engine. TraceHooks annotate the
span already on the request context, so they pair with a tracing HTTP handler.
*/
package observability
