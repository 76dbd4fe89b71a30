// Package metrics implements the Prometheus surface spec §6.3 defines:
// messaging-transport gauges/counters, backend health, and per-route
// request counters. Grounded on the teacher's pkg/telemetry/metrics
// package (a Collector wrapping a *prometheus.Registry), rebuilt
// against Nylon's own domain model instead of the teacher's
// provider/policy/cost/cache metric families.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every metric Nylon exports and implements the narrow
// consumer interfaces pkg/plugin/messaging and pkg/loadbalancer
// declare for themselves (messaging.Metrics, loadbalancer.Metrics),
// plus RecordRequest for pkg/proxy.
type Collector struct {
	registry *prometheus.Registry

	messagingInflight *prometheus.GaugeVec
	messagingRetries  *prometheus.CounterVec
	messagingTimeouts *prometheus.CounterVec
	messagingLatency  *prometheus.HistogramVec

	backendHealth    *prometheus.GaugeVec
	healthCheckTotal *prometheus.CounterVec

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector builds a Collector and registers every metric against
// registry. A fresh *prometheus.Registry is typical so the metrics
// listener (spec §6.1's "metrics" bind address) never mixes in the
// default process/Go collectors an app might register elsewhere.
func NewCollector(registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry: registry,

		messagingInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plugins_messaging_inflight",
			Help: "Current in-flight messaging-transport invocations per plugin.",
		}, []string{"plugin"}),

		messagingRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plugins_messaging_retries_total",
			Help: "Messaging-transport retries, by plugin and phase.",
		}, []string{"plugin", "phase"}),

		messagingTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plugins_messaging_timeouts_total",
			Help: "Messaging-transport phase timeouts, by plugin and phase.",
		}, []string{"plugin", "phase"}),

		messagingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plugins_messaging_latency_ms",
			Help:    "Messaging-transport round-trip latency in milliseconds, by plugin and phase.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"plugin", "phase"}),

		backendHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backend_health",
			Help: "1 if the backend endpoint is currently healthy, 0 otherwise.",
		}, []string{"service", "endpoint"}),

		healthCheckTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "health_check_total",
			Help: "Backend health checks performed, by service and outcome.",
		}, []string{"service", "status"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Requests dispatched, by route and response status.",
		}, []string{"route", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "request_duration_ms",
			Help:    "Request dispatch duration in milliseconds, by route.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"route"}),
	}

	registry.MustRegister(
		c.messagingInflight,
		c.messagingRetries,
		c.messagingTimeouts,
		c.messagingLatency,
		c.backendHealth,
		c.healthCheckTotal,
		c.requestsTotal,
		c.requestDuration,
	)

	return c
}

// Registry returns the registry metrics were registered against, for
// wiring into an http.Handler (see Handler in handler.go).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetMessagingInflight implements pkg/plugin/messaging.Metrics.
func (c *Collector) SetMessagingInflight(plugin string, n int64) {
	c.messagingInflight.WithLabelValues(plugin).Set(float64(n))
}

// IncMessagingRetries implements pkg/plugin/messaging.Metrics.
func (c *Collector) IncMessagingRetries(plugin, phase string) {
	c.messagingRetries.WithLabelValues(plugin, phase).Inc()
}

// IncMessagingTimeouts implements pkg/plugin/messaging.Metrics.
func (c *Collector) IncMessagingTimeouts(plugin, phase string) {
	c.messagingTimeouts.WithLabelValues(plugin, phase).Inc()
}

// ObserveMessagingLatency implements pkg/plugin/messaging.Metrics.
func (c *Collector) ObserveMessagingLatency(plugin, phase string, d time.Duration) {
	c.messagingLatency.WithLabelValues(plugin, phase).Observe(float64(d.Milliseconds()))
}

// SetBackendHealth implements pkg/loadbalancer.Metrics.
func (c *Collector) SetBackendHealth(service, endpoint string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	c.backendHealth.WithLabelValues(service, endpoint).Set(v)
}

// IncHealthCheckTotal implements pkg/loadbalancer.Metrics.
func (c *Collector) IncHealthCheckTotal(service, status string) {
	c.healthCheckTotal.WithLabelValues(service, status).Inc()
}

// RecordRequest records one dispatched request against requests_total
// and request_duration_ms, consumed by pkg/proxy's Server.
func (c *Collector) RecordRequest(route, status string, d time.Duration) {
	c.requestsTotal.WithLabelValues(route, status).Inc()
	c.requestDuration.WithLabelValues(route).Observe(float64(d.Milliseconds()))
}
