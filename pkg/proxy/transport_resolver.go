package proxy

import (
	"fmt"

	"github.com/nylon-dev/nylon/pkg/plugin/transport"
	"github.com/nylon-dev/nylon/pkg/store"
)

// snapshotTransportResolver adapts a committed store.Snapshot's
// Transports map to pipeline.TransportResolver, so OpenSteps never has
// to know how a plugin name resolves to a live transport.
type snapshotTransportResolver struct {
	snap *store.Snapshot
}

func newTransportResolver(snap *store.Snapshot) *snapshotTransportResolver {
	return &snapshotTransportResolver{snap: snap}
}

func (r *snapshotTransportResolver) Resolve(pluginName string) (transport.Transport, error) {
	tr, ok := r.snap.Transports[pluginName]
	if !ok {
		return nil, fmt.Errorf("proxy: no transport for plugin %q", pluginName)
	}
	return tr, nil
}
