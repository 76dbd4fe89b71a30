// Package proxy is the network-facing gateway: it owns the listeners,
// matches each request against the active route table, runs it through
// the configured middleware steps, and dispatches to whichever service
// kind the matched route names.
//
// # Architecture
//
//   - Server: per-listener HTTP/HTTPS servers sharing one handler chain,
//     lifecycle management and graceful shutdown.
//   - requestView/responseView: adapters from the real net/http types to
//     the plugin session package's read-only views.
//   - errors.go: maps a failure anywhere in the request lifecycle to the
//     JSON error body written back to the client.
//   - middleware: cross-cutting HTTP concerns applied around the whole
//     chain (recovery, request ID, logging, CORS, timeout), distinct
//     from the per-route plugin middleware steps run by pkg/pipeline.
//
// # Request flow
//
//  1. A listener's handler matches host/header/path/method against the
//     active route.Table.
//  2. The route's effective middleware steps are expanded and opened
//     against their resolved transports.
//  3. RequestFilter runs; a terminate or upgrade verdict short-circuits
//     the rest of the chain.
//  4. The matched service dispatches: a load-balanced HTTP upstream, a
//     plugin that produces the entire response, or a static file.
//  5. ResponseFilter and ResponseBodyFilter run against the result.
//  6. Logging runs, and the opened steps are closed.
//
// # Error handling
//
// A request the proxy core fails on its own behalf (no route matched,
// no healthy endpoint, an upstream failure) gets a JSON body:
//
//	{"error": {"message": "...", "type": "bad_gateway", "code": "no_healthy_endpoint"}}
//
// distinct from a response an upstream service or plugin produced,
// which passes through untouched.
package proxy
