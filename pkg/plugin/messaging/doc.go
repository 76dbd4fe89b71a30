// Package messaging implements the Messaging plugin transport (spec
// §4.4.2/§6.6): subjects follow <prefix>.<plugin>.<phase_fragment>, a
// per-session reply inbox is subscribed before the first send, envelopes
// are MessagePack-encoded, and a counting semaphore enforces
// max_inflight with a configurable overflow policy.
//
// Grounded on the teacher's pkg/providers.Provider interface for the
// "one interface, several backends" shape (this is the second backend,
// alongside pkg/plugin/localffi) and on the teacher's
// pkg/providers/health.go ticker-plus-backoff style for the retry logic.
// The broker client (github.com/nats-io/nats.go) and envelope codec
// (github.com/vmihailenco/msgpack/v5) do not appear anywhere in the
// example pack; they are the ecosystem's standard choices for
// "queue-group-balanced publish/subscribe" and "compact binary envelope
// encoding" respectively, the two properties spec §4.4.2 calls for by
// name, so they were added rather than grounded on a pack file.
package messaging
