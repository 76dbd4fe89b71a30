package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nylon-dev/nylon/pkg/config"
	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/session"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
	"github.com/nylon-dev/nylon/pkg/template"
)

// scriptedTransport never delivers an invoke, so a phase run against it
// only ends when its context does; tests use it as a plugin that never
// replies.
type scriptedTransport struct {
	endOnPhase map[abi.Phase]bool
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{endOnPhase: map[abi.Phase]bool{}}
}

func (s *scriptedTransport) Open(ctx context.Context, plugin, entryPoint string, initialPayload []byte) (transport.SessionHandle, error) {
	return 1, nil
}

func (s *scriptedTransport) SendEvent(ctx context.Context, h transport.SessionHandle, ev transport.Event) error {
	return nil
}

func (s *scriptedTransport) TryRecvInvoke(h transport.SessionHandle) (transport.Invoke, bool, error) {
	return transport.Invoke{}, false, nil
}

func (s *scriptedTransport) Close(ctx context.Context, h transport.SessionHandle) error { return nil }

// fakeRequestView satisfies session.RequestView minimally for tests
// that never exercise a real READ_REQUEST_* invoke.
type fakeRequestView struct{}

func (fakeRequestView) FullBody(ctx context.Context) ([]byte, error) { return nil, nil }
func (fakeRequestView) Header(string) (string, bool)                 { return "", false }
func (fakeRequestView) Headers() map[string]string                   { return nil }
func (fakeRequestView) URL() string                                  { return "/" }
func (fakeRequestView) Path() string                                 { return "/" }
func (fakeRequestView) Query() string                                { return "" }
func (fakeRequestView) Params() map[string]string                    { return nil }
func (fakeRequestView) Host() string                                 { return "example.test" }
func (fakeRequestView) ClientIP() string                              { return "127.0.0.1" }
func (fakeRequestView) Method() string                                { return "GET" }
func (fakeRequestView) ContentLength() int64                          { return 0 }
func (fakeRequestView) TimestampUnixMilli() int64                     { return 0 }

// immediateVerdictTransport answers every poll with a fixed NEXT or END
// invoke so RunPhase never blocks polling.
type immediateVerdictTransport struct {
	verdict abi.Method // abi.NEXT or abi.END
}

func (t *immediateVerdictTransport) Open(ctx context.Context, plugin, entryPoint string, initialPayload []byte) (transport.SessionHandle, error) {
	return 1, nil
}
func (t *immediateVerdictTransport) SendEvent(ctx context.Context, h transport.SessionHandle, ev transport.Event) error {
	return nil
}
func (t *immediateVerdictTransport) TryRecvInvoke(h transport.SessionHandle) (transport.Invoke, bool, error) {
	return transport.Invoke{Method: t.verdict}, true, nil
}
func (t *immediateVerdictTransport) Close(ctx context.Context, h transport.SessionHandle) error {
	return nil
}

type fixedResolver struct {
	byPlugin map[string]transport.Transport
}

func (r fixedResolver) Resolve(plugin string) (transport.Transport, error) {
	tr, ok := r.byPlugin[plugin]
	if !ok {
		return nil, fmt.Errorf("no transport for %q", plugin)
	}
	return tr, nil
}

func openTestSteps(t *testing.T, resolver TransportResolver, names ...string) []*Step {
	t.Helper()
	cfgSteps := make([]config.MiddlewareStep, len(names))
	for i, n := range names {
		cfgSteps[i] = config.MiddlewareStep{PluginName: n}
	}
	steps, err := OpenSteps(context.Background(), resolver, cfgSteps, &template.Scope{}, fakeRequestView{})
	require.NoError(t, err)
	return steps
}

func TestRunRequestFilter_AllContinueProducesNoTermination(t *testing.T) {
	resolver := fixedResolver{byPlugin: map[string]transport.Transport{
		"cors": &immediateVerdictTransport{verdict: abi.NEXT},
		"auth": &immediateVerdictTransport{verdict: abi.NEXT},
	}}
	steps := openTestSteps(t, resolver, "cors", "auth")

	outcome := RunRequestFilter(context.Background(), steps)
	assert.False(t, outcome.Terminated)
}

func TestRunRequestFilter_TerminateShortCircuitsRemaining(t *testing.T) {
	resolver := fixedResolver{byPlugin: map[string]transport.Transport{
		"auth":    &immediateVerdictTransport{verdict: abi.END},
		"billing": &immediateVerdictTransport{verdict: abi.NEXT},
	}}
	steps := openTestSteps(t, resolver, "auth", "billing")

	outcome := RunRequestFilter(context.Background(), steps)
	require.True(t, outcome.Terminated)
	assert.Equal(t, "auth", outcome.TerminatedAt.Config.PluginName)
}

func TestRunRequestFilter_OnErrorContinueSwallowsTimeout(t *testing.T) {
	resolver := fixedResolver{byPlugin: map[string]transport.Transport{
		"flaky": newScriptedTransport(), // never replies -> RunPhase would time out/poll forever without a deadline
	}}
	cfgSteps := []config.MiddlewareStep{{PluginName: "flaky", OnError: "continue"}}
	steps, err := OpenSteps(context.Background(), resolver, cfgSteps, &template.Scope{}, fakeRequestView{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome := RunRequestFilter(ctx, steps)
	assert.False(t, outcome.Terminated, "on_error: continue must treat a transport failure as an implicit NEXT")
}

func TestRunResponseFilter_AllContinueProducesNoTermination(t *testing.T) {
	resolver := fixedResolver{byPlugin: map[string]transport.Transport{
		"a": &immediateVerdictTransport{verdict: abi.NEXT},
		"b": &immediateVerdictTransport{verdict: abi.NEXT},
	}}
	steps := openTestSteps(t, resolver, "a", "b")

	outcome := RunResponseFilter(context.Background(), steps)
	assert.False(t, outcome.Terminated)
}

func TestRunLogging_NeverBlocksOnASingleStepFailure(t *testing.T) {
	resolver := fixedResolver{byPlugin: map[string]transport.Transport{
		"flaky": newScriptedTransport(),
		"ok":    &immediateVerdictTransport{verdict: abi.NEXT},
	}}
	steps := openTestSteps(t, resolver, "flaky", "ok")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		RunLogging(ctx, steps)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLogging must not block past its own step timeouts")
	}
}
