package pipeline

import (
	"context"
	"fmt"

	"github.com/nylon-dev/nylon/pkg/config"
	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/session"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
	"github.com/nylon-dev/nylon/pkg/template"
)

// TransportResolver looks up the transport a configured plugin name
// communicates over. Implemented by whatever owns the committed
// pkg/store.Snapshot's plugin instances; kept as a narrow interface so
// this package never imports pkg/store.
type TransportResolver interface {
	Resolve(pluginName string) (transport.Transport, error)
}

// Step pairs one expanded config.MiddlewareStep with the session.Handler
// driving it for the lifetime of one request. A Step is opened once
// (before RequestFilter) and reused across all four phases, matching
// spec §3's Session lifetime: "Created by Session Handler before first
// phase; destroyed after Logging completes."
type Step struct {
	Config  config.MiddlewareStep
	Handler *session.Handler
}

// OpenSteps renders each step's static payload template against scope,
// opens a session for it, and returns the ordered list of live Steps.
// Steps already opened are closed if a later step fails to open, so
// callers never have to unwind a partial list themselves.
func OpenSteps(ctx context.Context, resolver TransportResolver, steps []config.MiddlewareStep, scope *template.Scope, req session.RequestView) ([]*Step, error) {
	opened := make([]*Step, 0, len(steps))

	for _, stepCfg := range steps {
		tr, err := resolver.Resolve(stepCfg.PluginName)
		if err != nil {
			closeSteps(ctx, opened)
			return nil, fmt.Errorf("pipeline: resolve transport for plugin %q: %w", stepCfg.PluginName, err)
		}

		payload, err := template.Evaluate(stepCfg.StaticPayload, scope)
		if err != nil {
			closeSteps(ctx, opened)
			return nil, fmt.Errorf("pipeline: render static payload for plugin %q: %w", stepCfg.PluginName, err)
		}

		h, err := session.Open(ctx, tr, stepCfg.PluginName, stepCfg.EntryPoint, []byte(payload), req)
		if err != nil {
			closeSteps(ctx, opened)
			return nil, fmt.Errorf("pipeline: open session for plugin %q: %w", stepCfg.PluginName, err)
		}

		opened = append(opened, &Step{Config: stepCfg, Handler: h})
	}

	return opened, nil
}

func closeSteps(ctx context.Context, steps []*Step) {
	for _, s := range steps {
		_ = s.Handler.Cancel(ctx)
	}
}

// CloseSteps tears down every step's session, called once Logging
// completes or the request is cancelled early.
func CloseSteps(ctx context.Context, steps []*Step) {
	closeSteps(ctx, steps)
}

// onErrorContinue reports whether step is configured to tolerate its
// own invocation failing (spec §3's MiddlewareStep.OnError).
func (s *Step) onErrorContinue() bool {
	return s.Config.OnError == "continue"
}

// runOne drives a single step through one phase, applying its
// configured on_error policy to a transport/timeout failure: "continue"
// swallows the error and treats it as an implicit NEXT, anything else
// (including no policy at all) surfaces the error so the pipeline can
// fail the request.
func runOne(ctx context.Context, s *Step, phase abi.Phase) (session.Verdict, error) {
	verdict, err := s.Handler.RunPhase(ctx, phase)
	if err != nil {
		if s.onErrorContinue() {
			return session.VerdictContinue, nil
		}
		return session.VerdictTerminate, err
	}
	return verdict, nil
}
