// Package metrics implements the Prometheus surface spec §6.3 exposes
// on the "metrics" listener: messaging-transport gauges/counters
// (plugins_messaging_inflight, plugins_messaging_retries_total,
// plugins_messaging_timeouts_total, plugins_messaging_latency_ms),
// backend health (backend_health, health_check_total), and per-route
// request accounting (requests_total, request_duration_ms).
//
// Collector is the single registration point; pkg/plugin/messaging
// and pkg/loadbalancer each declare their own narrow Metrics interface
// so Collector is their only implementation, not a shared import.
//
//	registry := prometheus.NewRegistry()
//	collector := metrics.NewCollector(registry)
//	pool.SetMetrics(collector)
//	messaging.Config{Metrics: collector}
//	http.Handle("/metrics", collector.Handler())
package metrics
