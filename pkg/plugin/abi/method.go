package abi

// Method is a 32-bit method identifier shared by both transports (spec
// §4.4/§6.4). "The concrete numbering is free to differ so long as both
// sides agree" — this table is this core's chosen assignment.
type Method uint32

const (
	NEXT        Method = 1
	END         Method = 2
	GET_PAYLOAD Method = 3
)

const (
	SET_RESPONSE_HEADER        Method = 100
	REMOVE_RESPONSE_HEADER     Method = 101
	SET_RESPONSE_STATUS        Method = 102
	SET_RESPONSE_FULL_BODY     Method = 103
	SET_RESPONSE_STREAM_DATA   Method = 104
	SET_RESPONSE_STREAM_END    Method = 105
	SET_RESPONSE_STREAM_HEADER Method = 106
	READ_RESPONSE_FULL_BODY    Method = 107
	READ_RESPONSE_HEADERS      Method = 108
	READ_RESPONSE_STATUS       Method = 109
	READ_RESPONSE_BYTES        Method = 110
	READ_RESPONSE_DURATION     Method = 111
	READ_RESPONSE_ERROR        Method = 112
)

const (
	READ_REQUEST_FULL_BODY  Method = 200
	READ_REQUEST_HEADER     Method = 201
	READ_REQUEST_HEADERS    Method = 202
	READ_REQUEST_URL        Method = 203
	READ_REQUEST_PATH       Method = 204
	READ_REQUEST_QUERY      Method = 205
	READ_REQUEST_PARAMS     Method = 206
	READ_REQUEST_HOST       Method = 207
	READ_REQUEST_CLIENT_IP  Method = 208
	READ_REQUEST_METHOD     Method = 209
	READ_REQUEST_BYTES      Method = 210
	READ_REQUEST_TIMESTAMP  Method = 211
)

const (
	WEBSOCKET_UPGRADE               Method = 300
	WEBSOCKET_ON_OPEN                Method = 301
	WEBSOCKET_ON_CLOSE               Method = 302
	WEBSOCKET_ON_ERROR               Method = 303
	WEBSOCKET_ON_MESSAGE_TEXT        Method = 304
	WEBSOCKET_ON_MESSAGE_BINARY      Method = 305
	WEBSOCKET_SEND_TEXT              Method = 306
	WEBSOCKET_SEND_BINARY            Method = 307
	WEBSOCKET_CLOSE                  Method = 308
	WEBSOCKET_JOIN_ROOM              Method = 309
	WEBSOCKET_LEAVE_ROOM             Method = 310
	WEBSOCKET_BROADCAST_ROOM_TEXT    Method = 311
	WEBSOCKET_BROADCAST_ROOM_BINARY  Method = 312
)

// Phase is the pipeline phase an event or invocation belongs to, spec
// §4.4's phase enum.
type Phase uint8

const (
	PhaseNone Phase = iota
	PhaseRequestFilter
	PhaseResponseFilter
	PhaseResponseBodyFilter
	PhaseLogging
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseRequestFilter:
		return "request_filter"
	case PhaseResponseFilter:
		return "response_filter"
	case PhaseResponseBodyFilter:
		return "response_body_filter"
	case PhaseLogging:
		return "logging"
	default:
		return "unknown"
	}
}

// Fragment is the subject-name fragment the messaging transport uses for
// this phase (spec §4.4.2's phase_fragment enum). Lifecycle has no Phase
// counterpart since it is not request-scoped.
func (p Phase) Fragment() string {
	switch p {
	case PhaseNone:
		return "zero"
	case PhaseRequestFilter:
		return "request_filter"
	case PhaseResponseFilter:
		return "response_filter"
	case PhaseResponseBodyFilter:
		return "response_body_filter"
	case PhaseLogging:
		return "logging"
	default:
		return "unknown"
	}
}

// Verdict is what a phase invocation resolves to, driven exclusively by
// the plugin calling NEXT or END (spec §4.5).
type Verdict uint8

const (
	VerdictContinue Verdict = iota
	VerdictTerminate
)
