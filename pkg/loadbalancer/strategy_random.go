package loadbalancer

import (
	"math/rand/v2"
)

// randomSelector draws uniformly from the healthy set using a
// process-lifetime PRNG, per spec §4.3. math/rand/v2's top-level functions
// are already safe for concurrent use and auto-seeded, so no local
// generator or mutex is needed (unlike the teacher's counters, which guard
// their own state explicitly).
type randomSelector struct{}

func newRandomSelector() *randomSelector { return &randomSelector{} }

func (s *randomSelector) Select(healthy, all []*Endpoint, _ string) (*Endpoint, error) {
	pool, err := poolForSelection(healthy, all)
	if err != nil {
		return nil, err
	}
	if len(pool) == 1 {
		return pool[0], nil
	}
	return pool[rand.IntN(len(pool))], nil
}

func (s *randomSelector) Name() Algorithm { return Random }
