package proxy

import (
	"context"
	"fmt"

	"github.com/nylon-dev/nylon/pkg/loadbalancer"
	"github.com/nylon-dev/nylon/pkg/store"
	"github.com/nylon-dev/nylon/pkg/telemetry/health"
)

// poolHealth is the subset of *loadbalancer.Pool the readiness check
// needs; kept narrow so this file only depends on the one method it
// calls rather than the concrete pool type.
type poolHealth interface {
	Healthy() []*loadbalancer.Endpoint
}

// registerHealthChecks wires the generic health.Checker registry to
// Nylon's own domain state: a single "backend_pools" check that fails
// while any http backend pool has no healthy endpoint, plus a "config"
// check that a configuration has been committed at all. This replaces the teacher's
// provider-health shape with spec §4.3's backend-pool model.
func registerHealthChecks(checker *health.Checker, st *store.Store) {
	checker.RegisterCheck("config", func(ctx context.Context) error {
		if snap := st.Current(); snap == nil || snap.Config == nil {
			return fmt.Errorf("no configuration committed")
		}
		return nil
	})

	checker.RegisterCheck("backend_pools", func(ctx context.Context) error {
		snap := st.Current()
		if snap == nil {
			return fmt.Errorf("no configuration committed")
		}
		for name, p := range snap.Pools {
			hp, ok := p.(poolHealth)
			if !ok {
				continue
			}
			if len(hp.Healthy()) == 0 {
				return fmt.Errorf("pool %q has no healthy endpoints", name)
			}
		}
		return nil
	})
}
