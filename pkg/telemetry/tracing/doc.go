// Package tracing implements W3C Trace Context propagation
// (https://www.w3.org/TR/trace-context/) across Nylon's two transport
// boundaries: HTTP (incoming client requests, a proxied upstream call)
// and the messaging plugin transport's binary envelope headers.
//
// # Headers
//
// traceparent: version-trace_id-parent_id-trace_flags, e.g.
//
//	00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// tracestate carries vendor-specific context alongside it. Both are
// part of Nylon's own envelope/header model, not an add-on: a plugin
// invoked over the messaging transport receives whatever traceparent
// the inbound request arrived with, propagated across the broker hop
// via Envelope.Headers rather than an HTTP header map.
//
// # Usage
//
// Extracting context from an inbound request and forwarding it to a
// plugin transport:
//
//	ctx := tracing.Extract(r.Context(), r.Header)
//	tracing.InjectToMap(ctx, envelope.Headers)
//
// This package only propagates context that already exists on the
// ctx (created upstream by whatever process originated the request);
// it does not create spans, run a sampler, or export to a collector.
// Propagator always uses W3C Trace Context plus W3C Baggage, whatever
// propagator the process registered with otel.SetTextMapPropagator.
package tracing
