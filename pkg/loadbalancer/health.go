package loadbalancer

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// StartHealthChecks launches the per-endpoint health check loop for this
// pool. It runs until ctx is cancelled or StopHealthChecks is called.
//
// Adapted from the teacher's HTTPProvider.runHealthChecker
// (pkg/providers/health.go): a ticker per monitored resource, exponential
// backoff while unhealthy removed here (the spec calls for hysteresis
// thresholds, not backoff — see consecutive-count tracking below), jitter
// added on top per spec §4.3 ("±10% to avoid thundering herds").
func (p *Pool) StartHealthChecks(ctx context.Context, client *http.Client) {
	if p.hcConfig.Interval <= 0 {
		return
	}
	if client == nil {
		client = http.DefaultClient
	}
	p.mu.Lock()
	if p.stopHealth != nil {
		p.mu.Unlock()
		return // already running
	}
	p.stopHealth = make(chan struct{})
	stop := p.stopHealth
	p.mu.Unlock()

	p.hcWG.Add(1)
	go p.runHealthChecks(ctx, client, stop)
}

// StopHealthChecks stops the health check loop and waits for it to exit.
func (p *Pool) StopHealthChecks() {
	p.mu.Lock()
	stop := p.stopHealth
	p.stopHealth = nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	p.hcWG.Wait()
}

func (p *Pool) runHealthChecks(ctx context.Context, client *http.Client, stop chan struct{}) {
	defer p.hcWG.Done()

	interval := jitter(p.hcConfig.Interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.checkAll(ctx, client)
			ticker.Reset(jitter(p.hcConfig.Interval))
		}
	}
}

// jitter applies ±10% jitter to d, per spec §4.3.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	delta := float64(d) * 0.10
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}

func (p *Pool) checkAll(ctx context.Context, client *http.Client) {
	p.mu.RLock()
	endpoints := make([]*Endpoint, len(p.endpoints))
	copy(endpoints, p.endpoints)
	cfg := p.hcConfig
	p.mu.RUnlock()

	for _, ep := range endpoints {
		go p.checkOne(ctx, client, cfg, ep)
	}
}

func (p *Pool) checkOne(ctx context.Context, client *http.Client, cfg HealthCheckConfig, ep *Endpoint) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := cfg.Path
	if path == "" {
		path = "/"
	}
	url := "http://" + ep.Addr() + path

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	ok := false
	if err == nil {
		resp, rerr := client.Do(req)
		if rerr == nil {
			ok = resp.StatusCode < 400
			resp.Body.Close()
		}
	}

	p.recordCheck(cfg, ep, ok)
}

// recordCheck updates consecutive counters and flips health state across
// the hysteresis thresholds described in spec §4.3.
func (p *Pool) recordCheck(cfg HealthCheckConfig, ep *Endpoint, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := "failure"
	if ok {
		status = "success"
	}
	p.metrics.IncHealthCheckTotal(p.name, status)
	defer func() { p.metrics.SetBackendHealth(p.name, ep.Addr(), ep.healthy) }()

	ep.lastCheck = time.Now()
	healthyThreshold := cfg.HealthyThreshold
	if healthyThreshold <= 0 {
		healthyThreshold = 2
	}
	unhealthyThreshold := cfg.UnhealthyThreshold
	if unhealthyThreshold <= 0 {
		unhealthyThreshold = 3
	}

	if ok {
		ep.consecutiveSuccess++
		ep.consecutiveFailure = 0
		if !ep.healthy && ep.consecutiveSuccess >= healthyThreshold {
			ep.healthy = true
			p.stats.transitions.Add(1)
			slog.Info("endpoint became healthy", "pool", p.name, "endpoint", ep.Addr())
		}
	} else {
		ep.consecutiveFailure++
		ep.consecutiveSuccess = 0
		if ep.healthy && ep.consecutiveFailure >= unhealthyThreshold {
			ep.healthy = false
			p.stats.transitions.Add(1)
			slog.Warn("endpoint became unhealthy", "pool", p.name, "endpoint", ep.Addr())
		}
	}
	p.stats.checksTotal.Add(1)
}
