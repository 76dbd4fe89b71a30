package loadbalancer

import "sync/atomic"

// roundRobinSelector implements plain round robin: select pool[counter++
// mod len(pool)], matching spec §4.3. Adapted from the teacher's
// RoundRobinStrategy (pkg/routing/strategies/round_robin.go), stripped of
// per-provider weighting — weighting lives in weightedSelector instead,
// matching the spec's split between "round_robin" and "weighted" as two
// distinct algorithms rather than one parameterized one.
type roundRobinSelector struct {
	counter atomic.Uint64
}

func newRoundRobinSelector() *roundRobinSelector {
	return &roundRobinSelector{}
}

func (s *roundRobinSelector) Select(healthy, all []*Endpoint, _ string) (*Endpoint, error) {
	pool, err := poolForSelection(healthy, all)
	if err != nil {
		return nil, err
	}
	if len(pool) == 1 {
		return pool[0], nil
	}
	n := s.counter.Add(1) - 1
	return pool[n%uint64(len(pool))], nil
}

func (s *roundRobinSelector) Name() Algorithm { return RoundRobin }
