package session

import "github.com/nylon-dev/nylon/pkg/plugin/abi"

// State is current_phase (spec §4.5): the four pipeline phases plus the
// two states a Handler starts and ends in.
type State uint8

const (
	StateNone State = iota
	StateRequestFilter
	StateResponseFilter
	StateResponseBodyFilter
	StateLogging
	StateTerminal
)

func fromPhase(p abi.Phase) State {
	switch p {
	case abi.PhaseRequestFilter:
		return StateRequestFilter
	case abi.PhaseResponseFilter:
		return StateResponseFilter
	case abi.PhaseResponseBodyFilter:
		return StateResponseBodyFilter
	case abi.PhaseLogging:
		return StateLogging
	default:
		return StateNone
	}
}

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateRequestFilter:
		return "request_filter"
	case StateResponseFilter:
		return "response_filter"
	case StateResponseBodyFilter:
		return "response_body_filter"
	case StateLogging:
		return "logging"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Verdict is what a phase await resolves to. This is its own type
// rather than a re-export of abi.Verdict: the wire protocol only ever
// carries NEXT/END, but a RequestFilter phase can also settle by
// WEBSOCKET_UPGRADE (spec §4.8), which has no abi.Verdict counterpart
// since it never crosses the wire as a verdict, only as a method id.
type Verdict uint8

const (
	VerdictContinue Verdict = iota
	VerdictTerminate
	// VerdictUpgrade means the plugin called WEBSOCKET_UPGRADE during
	// RequestFilter: the HTTP request lifecycle is handed off to the
	// WebSocket bridge and the Filter Pipeline must stop driving
	// further phases against this Handler itself.
	VerdictUpgrade
)

func (v Verdict) String() string {
	switch v {
	case VerdictContinue:
		return "continue"
	case VerdictTerminate:
		return "terminate"
	case VerdictUpgrade:
		return "upgrade"
	default:
		return "unknown"
	}
}
