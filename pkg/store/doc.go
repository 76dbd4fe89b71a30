// Package store implements the Shared Store (C1): the process-wide handle
// through which every other component reaches the currently-committed
// configuration and the runtime handles derived from it (backend pools,
// plugin instances, plugin transports, the compiled route table).
//
// Design note (spec §9): the original system models this as a process-wide
// typed key/value map. This implementation takes the spec's suggested
// redesign instead — a single atomic.Pointer[Snapshot] swapped wholesale
// on commit, so readers never observe a torn configuration. This keeps the
// shape of the teacher's pkg/config/singleton.go (a guarded global,
// Initialize/Get/Reload-shaped API) but replaces its sync.RWMutex-guarded
// struct field with a lock-free atomic pointer swap, and replaces "global
// singleton" with "one Store value", so tests can hold independent stores.
package store
