package loadbalancer

import "sync/atomic"

// Stats holds lock-free per-pool counters, read through Pool.Stats.
// backend_health and health_check_total are reported separately through
// the Metrics interface; nothing copies Stats into the metrics package.
type Stats struct {
	checksTotal atomic.Int64
	transitions atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy of Stats for reporting.
type Snapshot struct {
	ChecksTotal      int64
	HealthTransitions int64
}

// Stats returns a snapshot of this pool's health-check statistics.
func (p *Pool) Stats() Snapshot {
	return Snapshot{
		ChecksTotal:       p.stats.checksTotal.Load(),
		HealthTransitions: p.stats.transitions.Load(),
	}
}
