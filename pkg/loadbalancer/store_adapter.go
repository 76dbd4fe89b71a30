package loadbalancer

import "github.com/nylon-dev/nylon/pkg/store"

// StoreAdapter narrows *Pool down to the store.Pool interface: Go's
// interface satisfaction is structural but not covariant on return
// types, and Pool.Select returns a concrete *Endpoint rather than the
// store.Endpoint interface, so the commit path that builds a
// pkg/store.Snapshot wraps each *Pool in one of these instead of
// handing the pool across the package boundary directly.
type StoreAdapter struct {
	*Pool
}

// Select adapts Pool.Select's concrete *Endpoint return to the
// store.Endpoint interface.
func (a StoreAdapter) Select(clientIP string) (store.Endpoint, error) {
	ep, err := a.Pool.Select(clientIP)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

var _ store.Pool = StoreAdapter{}
