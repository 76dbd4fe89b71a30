package loadbalancer

import (
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
)

// vnodesPerEndpoint is fixed at 160 per spec §4.3.
const vnodesPerEndpoint = 160

// consistentSelector hashes the request key onto a ring of
// vnodesPerEndpoint virtual nodes per endpoint and walks clockwise from the
// key's hash to the first healthy vnode. Endpoint membership is fixed at
// pool-construction time (reflecting the committed configuration); health
// is re-evaluated on every Select call so a removed-then-returning endpoint
// needs no ring rebuild.
//
// New package: the teacher's sticky routing (pkg/routing/strategies/
// sticky.go, now removed — see DESIGN.md) keyed a flat map of
// user/session/API-key to provider with a TTL, which models affinity but
// not graceful endpoint removal (S4's "removing an endpoint shifts ~1/4 of
// steered IPs" requirement needs a ring, not a flat cache).
type consistentSelector struct {
	mu   sync.RWMutex
	ring []ringNode
	key  KeyFunc
}

type ringNode struct {
	hash uint32
	ep   *Endpoint
}

func newConsistentSelector(endpoints []*Endpoint, key KeyFunc) *consistentSelector {
	s := &consistentSelector{key: key}
	s.build(endpoints)
	return s
}

func (s *consistentSelector) build(endpoints []*Endpoint) {
	ring := make([]ringNode, 0, len(endpoints)*vnodesPerEndpoint)
	for _, e := range endpoints {
		for v := 0; v < vnodesPerEndpoint; v++ {
			h := crc32.ChecksumIEEE([]byte(e.Addr() + "#" + strconv.Itoa(v)))
			ring = append(ring, ringNode{hash: h, ep: e})
		}
	}
	sort.Slice(ring, func(i, j int) bool { return ring[i].hash < ring[j].hash })

	s.mu.Lock()
	s.ring = ring
	s.mu.Unlock()
}

func (s *consistentSelector) Select(healthy, all []*Endpoint, clientIP string) (*Endpoint, error) {
	if len(all) == 0 {
		return nil, ErrNoEndpoints
	}
	if s.key == nil {
		s.key = DefaultKeyFunc
	}
	key := s.key(clientIP)
	hash := crc32.ChecksumIEEE([]byte(key))

	healthySet := make(map[*Endpoint]bool, len(healthy))
	for _, e := range healthy {
		healthySet[e] = true
	}
	// Fail-open: if nothing is healthy, every ring node is eligible.
	allHealthy := len(healthySet) == 0

	s.mu.RLock()
	ring := s.ring
	s.mu.RUnlock()
	if len(ring) == 0 {
		return nil, ErrNoEndpoints
	}

	idx := sort.Search(len(ring), func(i int) bool { return ring[i].hash >= hash })
	for i := 0; i < len(ring); i++ {
		n := ring[(idx+i)%len(ring)]
		if allHealthy || healthySet[n.ep] {
			return n.ep, nil
		}
	}
	return ring[idx%len(ring)].ep, nil
}

func (s *consistentSelector) Name() Algorithm { return Consistent }
