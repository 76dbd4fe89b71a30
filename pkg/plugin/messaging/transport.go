package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/nylon-dev/nylon/pkg/config"
	"github.com/nylon-dev/nylon/pkg/dedup"
	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
	"github.com/nylon-dev/nylon/pkg/ratelimit"
	"github.com/nylon-dev/nylon/pkg/telemetry/tracing"
)

// Metrics is the narrow surface the messaging transport needs from the
// metrics surface (spec §6.3); implemented by pkg/telemetry/metrics.
// Kept as a small consumer-defined interface so this package does not
// import pkg/telemetry/metrics directly.
type Metrics interface {
	SetMessagingInflight(plugin string, n int64)
	IncMessagingRetries(plugin, phase string)
	IncMessagingTimeouts(plugin, phase string)
	ObserveMessagingLatency(plugin, phase string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) SetMessagingInflight(string, int64)             {}
func (noopMetrics) IncMessagingRetries(string, string)              {}
func (noopMetrics) IncMessagingTimeouts(string, string)             {}
func (noopMetrics) ObserveMessagingLatency(string, string, time.Duration) {}

type pluginSession struct {
	replySubject string
	entryPoint   string
	sub          *nats.Subscription
	invokes      chan transport.Invoke
}

// Transport implements transport.Transport over a NATS connection, one
// instance per configured messaging-backed plugin.
type Transport struct {
	nc         *nats.Conn
	plugin     string
	prefix     string
	queueGroup string
	policies   map[string]config.PhasePolicy
	defaultTO  time.Duration
	sem        *ratelimit.Semaphore
	overflow   ratelimit.OverflowPolicy
	dedup      dedup.Store
	metrics    Metrics

	mu       sync.Mutex
	sessions map[transport.SessionHandle]*pluginSession
}

var nextSessionID atomic.Uint32

// Config bundles what Connect needs beyond the broker URLs.
type Config struct {
	Plugin      string
	Prefix      string // default "nylon.plugin"
	QueueGroup  string
	Policies    map[string]config.PhasePolicy
	MaxInflight int
	Overflow    ratelimit.OverflowPolicy
	Dedup       dedup.Store
	Metrics     Metrics
}

// Connect dials the broker and returns a ready Transport.
func Connect(urls []string, cfg Config) (*Transport, error) {
	nc, err := nats.Connect(strings.Join(urls, ","))
	if err != nil {
		return nil, fmt.Errorf("messaging: connect: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "nylon.plugin"
	}
	m := cfg.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	return &Transport{
		nc:         nc,
		plugin:     cfg.Plugin,
		prefix:     prefix,
		queueGroup: cfg.QueueGroup,
		policies:   cfg.Policies,
		defaultTO:  5 * time.Second,
		sem:        ratelimit.NewSemaphore(cfg.MaxInflight),
		overflow:   cfg.Overflow,
		dedup:      cfg.Dedup,
		metrics:    m,
		sessions:   map[transport.SessionHandle]*pluginSession{},
	}, nil
}

func (t *Transport) Open(ctx context.Context, _ string, entryPoint string, _ []byte) (transport.SessionHandle, error) {
	sid := transport.SessionHandle(nextSessionID.Add(1))
	replySubject := ReplySubject(t.prefix, t.plugin, uint32(sid))

	ps := &pluginSession{
		replySubject: replySubject,
		entryPoint:   entryPoint,
		invokes:      make(chan transport.Invoke, 64),
	}

	sub, err := t.nc.Subscribe(replySubject, func(msg *nats.Msg) {
		t.handleReply(ps, msg)
	})
	if err != nil {
		return 0, fmt.Errorf("messaging: subscribe reply inbox: %w", err)
	}
	ps.sub = sub

	t.mu.Lock()
	t.sessions[sid] = ps
	t.mu.Unlock()

	return sid, nil
}

func (t *Transport) handleReply(ps *pluginSession, msg *nats.Msg) {
	env, err := Decode(msg.Data)
	if err != nil {
		return
	}
	if !CompatibleVersion(env.Version) {
		return
	}

	if t.dedup != nil {
		seen, err := t.dedup.SeenOrRecord(context.Background(), env.SessionID, env.RequestID)
		if err == nil && seen {
			return
		}
	}

	select {
	case ps.invokes <- transport.Invoke{Method: env.MethodValue(), Payload: env.Data, RequestID: env.RequestID}:
	default:
	}
}

func (t *Transport) SendEvent(ctx context.Context, h transport.SessionHandle, ev transport.Event) error {
	t.mu.Lock()
	ps, ok := t.sessions[h]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("messaging: unknown session %d", h)
	}

	if err := t.acquire(ctx); err != nil {
		return err
	}
	t.metrics.SetMessagingInflight(t.plugin, t.sem.Inflight())
	defer func() {
		t.sem.Release()
		t.metrics.SetMessagingInflight(t.plugin, t.sem.Inflight())
	}()

	return t.publish(ctx, ps, uint32(h), ev, uuid.New())
}

func (t *Transport) acquire(ctx context.Context) error {
	switch t.overflow {
	case ratelimit.OverflowQueue:
		return t.sem.Acquire(ctx)
	default: // reject, shed: both fail fast, the difference is the pipeline's on_error handling
		if !t.sem.TryAcquire() {
			return fmt.Errorf("messaging: plugin %q at max_inflight", t.plugin)
		}
		return nil
	}
}

func (t *Transport) publish(ctx context.Context, ps *pluginSession, sid uint32, ev transport.Event, requestID uuid.UUID) error {
	env := Envelope{
		Version:   SchemaVersion,
		SessionID: sid,
		Phase:     uint8(ev.Phase),
		Method:    uint32(ev.Method),
		Data:      ev.Payload,
		Headers:   map[string]string{"reply": ps.replySubject, "entry": ps.entryPoint},
		Timestamp: uint64(time.Now().UnixMilli()),
	}
	tracing.InjectToMap(ctx, env.Headers)
	copy(env.RequestID[:], requestID[:])

	data, err := Encode(env)
	if err != nil {
		return fmt.Errorf("messaging: encode envelope: %w", err)
	}

	subject := EventSubject(t.prefix, t.plugin, ev.Phase)
	if err := t.nc.PublishRequest(subject, ps.replySubject, data); err != nil {
		return fmt.Errorf("messaging: publish %q: %w", subject, err)
	}
	return nil
}

func (t *Transport) TryRecvInvoke(h transport.SessionHandle) (transport.Invoke, bool, error) {
	t.mu.Lock()
	ps, ok := t.sessions[h]
	t.mu.Unlock()
	if !ok {
		return transport.Invoke{}, false, fmt.Errorf("messaging: unknown session %d", h)
	}
	select {
	case inv := <-ps.invokes:
		return inv, true, nil
	default:
		return transport.Invoke{}, false, nil
	}
}

func (t *Transport) Close(ctx context.Context, h transport.SessionHandle) error {
	t.mu.Lock()
	ps, ok := t.sessions[h]
	delete(t.sessions, h)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	if ps.sub != nil {
		_ = ps.sub.Unsubscribe()
	}
	close(ps.invokes)
	if t.dedup != nil {
		_ = t.dedup.Forget(ctx, uint32(h))
	}
	return nil
}

// PhasePolicy implements transport.RetryPolicyProvider.
func (t *Transport) PhasePolicy(phase abi.Phase) transport.PhasePolicy {
	return ResolvePolicy(t.policies, phase.Fragment(), t.defaultTO)
}

// Retry re-publishes the same event under the same request_id (safe:
// the receiver's dedup set makes this idempotent) after the backoff
// delay for attempt, recording a retry metric.
func (t *Transport) Retry(ctx context.Context, h transport.SessionHandle, ev transport.Event, requestID uuid.UUID, attempt int, policy transport.PhasePolicy) error {
	b := newExponentialBackOff(policy.BackoffInitial, policy.BackoffMax)
	var delay time.Duration
	for i := 0; i <= attempt; i++ {
		delay = b.NextBackOff()
	}
	if err := waitBackoff(ctx, delay); err != nil {
		return err
	}

	t.mu.Lock()
	ps, ok := t.sessions[h]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("messaging: unknown session %d", h)
	}

	t.metrics.IncMessagingRetries(t.plugin, ev.Phase.Fragment())
	return t.publish(ctx, ps, uint32(h), ev, requestID)
}

// Shutdown closes the broker connection. Called once on drain.
func (t *Transport) Shutdown(context.Context) error {
	t.nc.Close()
	return nil
}
