package pipeline

import (
	"context"
	"log/slog"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/session"
)

// Outcome is the result of running one phase across a step list.
type Outcome struct {
	// Terminated is true once some step returned VerdictTerminate; the
	// caller must synthesize the response from that step's mutation
	// buffer and skip the upstream call (RequestFilter) or skip
	// remaining steps (ResponseFilter/ResponseBodyFilter).
	Terminated bool
	// TerminatedAt is the step that terminated, nil if Terminated is
	// false.
	TerminatedAt *Step
	// Upgraded is true once some step returned VerdictUpgrade (spec
	// §4.8's WEBSOCKET_UPGRADE during RequestFilter). The caller must
	// perform the actual HTTP upgrade and hand the connection to
	// UpgradedAt's Handler instead of continuing to ResponseFilter.
	Upgraded bool
	// UpgradedAt is the step that requested the upgrade, nil if
	// Upgraded is false.
	UpgradedAt *Step
}

// RunRequestFilter implements spec §4.7 step 2: run middleware in
// order; a terminate verdict short-circuits the remaining steps and the
// upstream call.
func RunRequestFilter(ctx context.Context, steps []*Step) Outcome {
	for _, s := range steps {
		verdict, err := runOne(ctx, s, abi.PhaseRequestFilter)
		if err != nil {
			slog.ErrorContext(ctx, "request filter step failed", "plugin", s.Config.PluginName, "error", err)
			return Outcome{Terminated: true, TerminatedAt: s}
		}
		if verdict == session.VerdictUpgrade {
			return Outcome{Upgraded: true, UpgradedAt: s}
		}
		if verdict == session.VerdictTerminate {
			return Outcome{Terminated: true, TerminatedAt: s}
		}
	}
	return Outcome{}
}

// RunResponseFilter implements spec §4.7 step 4: run every step in the
// SAME order as RequestFilter, regardless of whether RequestFilter
// short-circuited (spec: "even on early termination in Phase 1, all
// middleware that actually registered handlers for phases 2/3/4 still
// run"). A terminate verdict here stops only the remaining
// ResponseFilter steps, not ResponseBodyFilter/Logging.
func RunResponseFilter(ctx context.Context, steps []*Step) Outcome {
	for _, s := range steps {
		verdict, err := runOne(ctx, s, abi.PhaseResponseFilter)
		if err != nil {
			slog.ErrorContext(ctx, "response filter step failed", "plugin", s.Config.PluginName, "error", err)
			return Outcome{Terminated: true, TerminatedAt: s}
		}
		if verdict == session.VerdictTerminate {
			return Outcome{Terminated: true, TerminatedAt: s}
		}
	}
	return Outcome{}
}

// RunResponseBodyFilter implements spec §4.7 step 5: invoke every step
// for each body chunk. A step with no registered body handler simply
// calls NEXT immediately inside its own plugin code, so this function
// does not need to know in advance which steps "opted in" — it drives
// all of them and lets the plugin decide whether the phase was
// meaningful to it. A terminate verdict truncates the stream cleanly:
// the caller must stop reading further chunks from the upstream body.
func RunResponseBodyFilter(ctx context.Context, steps []*Step) Outcome {
	for _, s := range steps {
		verdict, err := runOne(ctx, s, abi.PhaseResponseBodyFilter)
		if err != nil {
			slog.ErrorContext(ctx, "response body filter step failed", "plugin", s.Config.PluginName, "error", err)
			return Outcome{Terminated: true, TerminatedAt: s}
		}
		if verdict == session.VerdictTerminate {
			return Outcome{Terminated: true, TerminatedAt: s}
		}
	}
	return Outcome{}
}

// RunLogging implements spec §4.7 step 6: advisory, best-effort. Each
// step is bounded by ctx and by its transport's Logging-phase policy
// timeout, when the transport has one. A single step failing
// never blocks or fails the others or the caller; errors are only
// logged.
func RunLogging(ctx context.Context, steps []*Step) {
	for _, s := range steps {
		if _, err := s.Handler.RunPhase(ctx, abi.PhaseLogging); err != nil {
			slog.ErrorContext(ctx, "logging step failed", "plugin", s.Config.PluginName, "error", err)
		}
	}
}
