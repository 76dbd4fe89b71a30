package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
)

// Handler is one Session Handler instance (spec §4.5): the
// current_phase state machine plus FIFO dispatch of one plugin
// session's invocations. Not safe to share across goroutines beyond
// the one driving its RunPhase calls, except for Cancel, which may be
// called concurrently to tear a session down early.
type Handler struct {
	tr     transport.Transport
	handle transport.SessionHandle

	plugin        string
	entryPoint    string
	staticPayload []byte

	req  RequestView
	ws   WebSocketHandler
	resp ResponseView

	mu    sync.Mutex
	state State

	mutation *ResponseMutation

	pollInterval time.Duration
}

// Option configures a Handler at construction.
type Option func(*Handler)

// WithWebSocketHandler attaches a WebSocket bridge once a connection
// has been upgraded, so subsequent WEBSOCKET_* invokes route there
// instead of failing.
func WithWebSocketHandler(ws WebSocketHandler) Option {
	return func(h *Handler) { h.ws = ws }
}

// WithPollInterval overrides the default invoke-polling cadence; tests
// use a short interval to avoid slow runs.
func WithPollInterval(d time.Duration) Option {
	return func(h *Handler) { h.pollInterval = d }
}

// Open creates a session against tr and registers it as current_phase
// = None, per spec §4.5: "set before the plugin's register_session_stream
// returns". staticPayload is the rendered per-step static payload
// (§4.6: GET_PAYLOAD replies with this, JSON-encoded).
func Open(ctx context.Context, tr transport.Transport, plugin, entryPoint string, staticPayload []byte, req RequestView, opts ...Option) (*Handler, error) {
	h := &Handler{
		tr:            tr,
		plugin:        plugin,
		entryPoint:    entryPoint,
		staticPayload: staticPayload,
		req:           req,
		state:         StateNone,
		mutation:      newResponseMutation(),
		pollInterval:  time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}

	handle, err := tr.Open(ctx, plugin, entryPoint, staticPayload)
	if err != nil {
		return nil, fmt.Errorf("session: open %q/%q: %w", plugin, entryPoint, err)
	}
	h.handle = handle
	return h, nil
}

// State returns current_phase.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Mutation exposes the accumulated response mutation buffer.
func (h *Handler) Mutation() *ResponseMutation {
	return h.mutation
}

// RunPhase drives one phase to completion: sends the phase-start
// event, then dispatches invokes FIFO until the plugin calls NEXT
// (VerdictContinue) or END (VerdictTerminate), the phase's transport
// policy times out, or ctx is cancelled.
//
// A timeout is mapped to the phase's on_error policy (spec §4.5:
// "mapped to verdict retry|continue|end per the transport's phase
// policy") internally: on_error "retry" re-sends the phase-start event
// (full-jitter exponential backoff between attempts, spec §4.4.2) up
// to retry.max_retries times before giving up; "continue"/"end" are
// left to the caller, which still sees a plain error either way.
func (h *Handler) RunPhase(ctx context.Context, phase abi.Phase) (Verdict, error) {
	h.mu.Lock()
	if h.state == StateTerminal {
		h.mu.Unlock()
		return VerdictTerminate, fmt.Errorf("session: phase %s invoked after terminal", phase)
	}
	h.state = fromPhase(phase)
	h.mu.Unlock()

	policy, hasPolicy := h.retryPolicy(phase)
	var b *backoff.ExponentialBackOff
	if hasPolicy && policy.OnError == "retry" {
		b = newBackOff(policy)
	}

	for attempt := 0; ; attempt++ {
		if err := h.tr.SendEvent(ctx, h.handle, transport.Event{Phase: phase, Method: 0, Payload: nil}); err != nil {
			return VerdictTerminate, fmt.Errorf("session: send phase-start %s: %w", phase, err)
		}

		verdict, err := h.runPhaseOnce(ctx, phase, policy, hasPolicy)
		if err == nil {
			return verdict, nil
		}
		if b == nil || attempt >= policy.RetryMax {
			return VerdictTerminate, err
		}
		if werr := waitBackoff(ctx, b.NextBackOff()); werr != nil {
			return VerdictTerminate, werr
		}
	}
}

func (h *Handler) runPhaseOnce(ctx context.Context, phase abi.Phase, policy transport.PhasePolicy, hasPolicy bool) (Verdict, error) {
	var deadline context.Context
	var cancel context.CancelFunc
	if hasPolicy && policy.Timeout > 0 {
		deadline, cancel = context.WithTimeout(ctx, policy.Timeout)
	} else {
		deadline, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	for {
		inv, ok, err := h.tr.TryRecvInvoke(h.handle)
		if err != nil {
			return VerdictTerminate, fmt.Errorf("session: recv invoke: %w", err)
		}
		if !ok {
			select {
			case <-deadline.Done():
				return VerdictTerminate, fmt.Errorf("session: phase %s: %w", phase, deadline.Err())
			case <-time.After(h.pollInterval):
				continue
			}
		}

		verdict, settled, err := h.dispatch(deadline, phase, inv)
		if err != nil {
			return VerdictTerminate, err
		}
		if settled {
			return verdict, nil
		}
	}
}

// waitBackoff blocks for d or until ctx is cancelled, whichever comes
// first.
func waitBackoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// newBackOff builds a full-jitter exponential backoff generator per
// spec §4.4.2, matching pkg/plugin/messaging's own retry backoff.
func newBackOff(policy transport.PhasePolicy) *backoff.ExponentialBackOff {
	initial := policy.BackoffInitial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	max := policy.BackoffMax
	if max <= 0 {
		max = 5 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.RandomizationFactor = 1.0
	b.Reset()
	return b
}

// retryPolicy resolves the phase's transport-failure policy, when the
// transport carries one (spec §4.4.2 is explicit this is
// messaging-only; Local-FFI calls are in-process and never time out).
func (h *Handler) retryPolicy(phase abi.Phase) (transport.PhasePolicy, bool) {
	rp, ok := h.tr.(transport.RetryPolicyProvider)
	if !ok {
		return transport.PhasePolicy{}, false
	}
	return rp.PhasePolicy(phase), true
}


// dispatch applies one invoke per method id (§4.6). settled is true
// once NEXT/END has transitioned the phase; only then is verdict
// meaningful.
func (h *Handler) dispatch(ctx context.Context, phase abi.Phase, inv transport.Invoke) (Verdict, bool, error) {
	switch {
	case inv.Method == abi.NEXT:
		return VerdictContinue, true, nil
	case inv.Method == abi.END:
		return VerdictTerminate, true, nil
	case inv.Method == abi.WEBSOCKET_UPGRADE:
		if phase != abi.PhaseRequestFilter {
			return VerdictContinue, false, fmt.Errorf("session: WEBSOCKET_UPGRADE only valid during request_filter, got %s", phase)
		}
		return VerdictUpgrade, true, nil
	case inv.Method == abi.GET_PAYLOAD:
		return h.reply(ctx, phase, inv.Method, h.staticPayload)
	case inv.Method >= 100 && inv.Method < 200:
		return h.dispatchResponseWrite(ctx, phase, inv)
	case inv.Method >= 200 && inv.Method < 300:
		return h.dispatchRequestRead(ctx, phase, inv)
	case inv.Method >= 300 && inv.Method < 400:
		return h.dispatchWebSocket(ctx, inv)
	default:
		return VerdictContinue, false, fmt.Errorf("session: unknown method id %d", inv.Method)
	}
}

func (h *Handler) reply(ctx context.Context, phase abi.Phase, method abi.Method, payload []byte) (Verdict, bool, error) {
	err := h.tr.SendEvent(ctx, h.handle, transport.Event{Phase: phase, Method: method, Payload: payload})
	return VerdictContinue, false, err
}

func (h *Handler) dispatchWebSocket(ctx context.Context, inv transport.Invoke) (Verdict, bool, error) {
	if h.ws == nil {
		return VerdictContinue, false, fmt.Errorf("session: method %d requires an upgraded WebSocket connection", inv.Method)
	}
	reply, err := h.ws.Dispatch(ctx, inv.Method, inv.Payload)
	if err != nil {
		return VerdictContinue, false, err
	}
	if reply == nil {
		return VerdictContinue, false, nil
	}
	return h.reply(ctx, abi.PhaseNone, inv.Method, reply)
}

// AttachWebSocket wires ws in once the bridge (C8) has performed the
// actual HTTP upgrade, so WEBSOCKET_* invokes the plugin issues after
// VerdictUpgrade start reaching it.
func (h *Handler) AttachWebSocket(ws WebSocketHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ws = ws
}

// Notify delivers a WebSocket lifecycle event (ON_OPEN/ON_MESSAGE_*/
// ON_CLOSE/ON_ERROR) to the plugin. Unlike RunPhase's phase-start
// events, these are not gated by current_phase: the connection
// lifecycle has already superseded the four HTTP phases (spec §4.8).
func (h *Handler) Notify(ctx context.Context, method abi.Method, payload []byte) error {
	return h.tr.SendEvent(ctx, h.handle, transport.Event{Phase: abi.PhaseNone, Method: method, Payload: payload})
}

// RunWebSocket drains plugin-issued WEBSOCKET_* commands (SEND_TEXT,
// JOIN_ROOM, BROADCAST_ROOM_*, CLOSE, ...) for the life of the
// connection, applying each against the attached WebSocketHandler.
// Returns when the plugin calls WEBSOCKET_CLOSE, ctx is cancelled (the
// bridge's read pump detected the client closing), or the transport
// errors.
func (h *Handler) RunWebSocket(ctx context.Context) error {
	for {
		inv, ok, err := h.tr.TryRecvInvoke(h.handle)
		if err != nil {
			return fmt.Errorf("session: websocket recv invoke: %w", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.pollInterval):
				continue
			}
		}

		if inv.Method == abi.WEBSOCKET_CLOSE {
			if h.ws != nil {
				_, _ = h.ws.Dispatch(ctx, inv.Method, inv.Payload)
			}
			return nil
		}
		if inv.Method < 300 || inv.Method >= 400 {
			continue
		}
		if _, _, err := h.dispatchWebSocket(ctx, inv); err != nil {
			return err
		}
	}
}

// Cancel moves the session to Terminal and tells the transport to
// abort it (spec §4.5's cancellation rule). Safe to call more than
// once or concurrently with RunPhase; a subsequent RunPhase observes
// Terminal and refuses to run further phases.
func (h *Handler) Cancel(ctx context.Context) error {
	h.mu.Lock()
	if h.state == StateTerminal {
		h.mu.Unlock()
		return nil
	}
	h.state = StateTerminal
	h.mu.Unlock()

	return h.tr.Close(ctx, h.handle)
}
