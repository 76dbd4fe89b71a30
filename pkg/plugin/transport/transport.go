// Package transport defines the abstract contract the Session Handler
// consumes (C5, spec §4.4): four operations, implemented by
// pkg/plugin/localffi (Local-FFI C ABI) and pkg/plugin/messaging (NATS +
// MessagePack). Grounded on the teacher's pkg/providers.Provider
// interface — one small interface, several backends selected by config
// kind, each living in its own subpackage.
package transport

import (
	"context"
	"time"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
)

// SessionHandle identifies one open plugin session to a transport. Its
// value comes from a process-wide counter in both transports (the
// messaging transport maps it to a reply subject); callers treat it
// opaquely.
type SessionHandle uint32

// Event is what the core sends into the plugin asynchronously: a
// phase-start, a read-reply, or a phase-abort.
type Event struct {
	Phase   abi.Phase
	Method  abi.Method
	Payload []byte
}

// Invoke is what the plugin sends back against the core: a control call,
// a read, or a write.
type Invoke struct {
	Method    abi.Method
	Payload   []byte
	RequestID [16]byte // messaging-only; zero value for Local-FFI
}

// Transport is the abstract plugin communication contract (spec §4.4).
// Implementations must be safe for concurrent use across many sessions;
// a single session's methods are only ever called by the Session Handler
// that owns it, so no per-session locking is required here.
type Transport interface {
	// Open registers that a session exists and returns before the first
	// phase event is sent, per spec's "must return before the first
	// phase event is sent".
	Open(ctx context.Context, plugin, entryPoint string, initialPayload []byte) (SessionHandle, error)

	// SendEvent delivers an asynchronous event into the plugin; it must
	// never block on plugin logic.
	SendEvent(ctx context.Context, h SessionHandle, ev Event) error

	// TryRecvInvoke polls for the plugin's next invocation against the
	// core. ok is false if none is currently available; it never blocks.
	TryRecvInvoke(h SessionHandle) (Invoke, bool, error)

	// Close tears the session down and releases transport-side state.
	Close(ctx context.Context, h SessionHandle) error
}

// RetryPolicyProvider is implemented only by transports with a per-phase
// transport-failure policy (spec §4.4.2 is explicit this is
// "messaging-only" — Local-FFI calls are in-process and do not time
// out). The Session Handler type-asserts for this interface and, when
// absent, awaits a phase's invoke with no timeout/retry.
type RetryPolicyProvider interface {
	PhasePolicy(phase abi.Phase) PhasePolicy
}

// PhasePolicy is the resolved transport-failure policy for one phase.
type PhasePolicy struct {
	Timeout        time.Duration
	OnError        string // retry | continue | end
	RetryMax       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}
