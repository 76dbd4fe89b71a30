package loadbalancer

import (
	"errors"
	"fmt"
)

// ErrNoEndpoints is returned when a pool has no endpoints configured at all.
var ErrNoEndpoints = errors.New("loadbalancer: pool has no endpoints")

// KeyFunc extracts the stable request key the consistent-hashing algorithm
// hashes onto the ring. Per spec §4.3/§9 the default (and, for now, only)
// key is the client IP string; the signature is request-shaped so a future
// pluggable key is additive.
type KeyFunc func(clientIP string) string

// DefaultKeyFunc is the client-IP keying spec §9 fixes as normative.
func DefaultKeyFunc(clientIP string) string { return clientIP }

// Selector picks one endpoint from a pool's healthy set (or, if that set is
// empty, the full set per spec §4.3's fail-open rule) for a given request.
//
// Implementations must be thread-safe: the Filter Pipeline calls Select
// concurrently across independent requests.
type Selector interface {
	// Select returns an endpoint for the request. clientIP is only
	// consulted by the consistent algorithm.
	Select(healthy, all []*Endpoint, clientIP string) (*Endpoint, error)
	Name() Algorithm
}

func newSelector(algo Algorithm, endpoints []*Endpoint, key KeyFunc) (Selector, error) {
	if key == nil {
		key = DefaultKeyFunc
	}
	switch algo {
	case RoundRobin, "":
		return newRoundRobinSelector(), nil
	case Weighted:
		return newWeightedSelector(), nil
	case Random:
		return newRandomSelector(), nil
	case Consistent:
		return newConsistentSelector(endpoints, key), nil
	default:
		return nil, fmt.Errorf("loadbalancer: unknown algorithm %q", algo)
	}
}

// poolForSelection returns the healthy set, or the full set if no endpoint
// is healthy (spec §4.3: "do not synthesize 502 at this layer — let the
// connect attempt fail").
func poolForSelection(healthy, all []*Endpoint) ([]*Endpoint, error) {
	if len(all) == 0 {
		return nil, ErrNoEndpoints
	}
	if len(healthy) == 0 {
		return all, nil
	}
	return healthy, nil
}

// Select runs the pool's configured selector against its current health
// view. This is the entry point the Filter Pipeline's service-invocation
// step (spec §4.7 step 3) calls.
func (p *Pool) Select(clientIP string) (*Endpoint, error) {
	p.mu.RLock()
	all := make([]*Endpoint, len(p.endpoints))
	copy(all, p.endpoints)
	healthy := make([]*Endpoint, 0, len(all))
	for _, e := range all {
		if e.healthy {
			healthy = append(healthy, e)
		}
	}
	sel := p.selector
	p.mu.RUnlock()

	return sel.Select(healthy, all, clientIP)
}
