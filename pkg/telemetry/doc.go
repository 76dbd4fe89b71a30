// Package telemetry groups Nylon's observability subpackages:
//
//   - logging: structured request logging with header redaction
//   - metrics: the Prometheus surface spec §6.3 defines
//   - tracing: W3C trace-context propagation across HTTP and messaging
//   - health: liveness/readiness probes over backend-pool and configuration state
//
// Each subpackage is self-contained; pkg/proxy wires them together at
// Server construction time.
package telemetry
