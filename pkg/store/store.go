package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nylon-dev/nylon/pkg/config"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
	"github.com/nylon-dev/nylon/pkg/route"
)

// PluginInstance is the lifecycle contract the Shared Store holds for every
// configured plugin (spec §3: "created on config commit, initialize(payload)
// called once, shutdown() called once on drain. Exclusive owner: Shared
// Store.").
type PluginInstance interface {
	Shutdown(ctx context.Context) error
}

// Pool is the subset of loadbalancer.Pool's surface the store needs; kept
// as a local interface to avoid pkg/store depending on pkg/loadbalancer,
// matching the teacher's pattern of small consumer-defined interfaces
// (e.g. handlers.ProviderManager) instead of importing concrete types
// across package boundaries.
type Pool interface {
	Select(clientIP string) (Endpoint, error)
}

// Endpoint is the minimal endpoint surface the proxy core needs once a
// pool has made a selection.
type Endpoint interface {
	Addr() string
}

// Snapshot is one immutable, fully-committed configuration generation plus
// the runtime handles derived from it. A Snapshot, once committed, is
// never mutated; a reload produces a new Snapshot and swaps the pointer.
type Snapshot struct {
	Config  *config.Config
	Pools   map[string]Pool
	Plugins map[string]PluginInstance
	// Transports maps a configured plugin name to the transport
	// (Local-FFI or Messaging) its Session Handlers talk over. A
	// middleware step and the plugin it names always resolve to the
	// same entry here, regardless of which plugin backend the config
	// selected (spec §4.3's `plugin.backend` field).
	Transports map[string]transport.Transport

	// Routes is the compiled route table for Config.Routes, built once
	// at commit time so the proxy core never rebuilds it per request.
	Routes *route.Table
}

// Store holds the current Snapshot behind a lock-free atomic pointer, per
// spec §9's redesign note. The zero value is an empty Store, the same as
// what New returns.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// New creates an empty Store. Commit must be called before Current returns
// a non-nil Snapshot.
func New() *Store {
	return &Store{}
}

// Current returns the active snapshot, or nil if none has been committed
// yet. In-flight requests that already captured a Snapshot keep using it
// even after a later Commit swaps the pointer — Current is only consulted
// at request-start, never mid-request, which is what makes reload safe in
// the presence of in-flight requests (spec §9).
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Commit validates the incoming configuration's identifier invariants and,
// only if valid, atomically installs the new snapshot. Config errors never
// reach the request path: on failure the previously committed snapshot
// continues to serve (spec §7).
func (s *Store) Commit(snap *Snapshot) error {
	if snap == nil || snap.Config == nil {
		return fmt.Errorf("store: commit requires a non-nil snapshot and config")
	}
	if err := config.Validate(snap.Config); err != nil {
		return fmt.Errorf("store: refusing commit: %w", err)
	}
	if snap.Pools == nil {
		snap.Pools = map[string]Pool{}
	}
	if snap.Plugins == nil {
		snap.Plugins = map[string]PluginInstance{}
	}
	if snap.Transports == nil {
		snap.Transports = map[string]transport.Transport{}
	}
	if snap.Routes == nil {
		snap.Routes = route.Build(snap.Config)
	}
	s.current.Store(snap)
	return nil
}

// Drain calls Shutdown on every plugin instance in the current snapshot.
// It is invoked once by the Background Service during graceful shutdown.
func (s *Store) Drain(ctx context.Context) []error {
	snap := s.Current()
	if snap == nil {
		return nil
	}
	var errs []error
	for name, p := range snap.Plugins {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plugin %q shutdown: %w", name, err))
		}
	}
	return errs
}
