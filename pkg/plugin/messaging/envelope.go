package messaging

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
)

// SchemaVersion is the current envelope schema version. Spec §4.4.2:
// "N, N-1 accepted, warn on mismatch".
const SchemaVersion = 1

// Action is the response-direction verdict carried in an envelope,
// spec §4.4.2's action enum.
type Action string

const (
	ActionNext  Action = "next"
	ActionEnd   Action = "end"
	ActionError Action = "error"
)

// Envelope is the wire-level request/response message spec §4.4.2
// defines, encoded with MessagePack.
type Envelope struct {
	Version   uint16            `msgpack:"version"`
	RequestID [16]byte          `msgpack:"request_id"`
	SessionID uint32            `msgpack:"session_id"`
	Phase     uint8             `msgpack:"phase"`
	Method    uint32            `msgpack:"method"`
	Data      []byte            `msgpack:"data"`
	Action    Action            `msgpack:"action,omitempty"`
	Error     string            `msgpack:"error,omitempty"`
	Headers   map[string]string `msgpack:"headers,omitempty"`
	Timestamp uint64            `msgpack:"timestamp"`
}

func (e Envelope) PhaseValue() abi.Phase   { return abi.Phase(e.Phase) }
func (e Envelope) MethodValue() abi.Method { return abi.Method(e.Method) }

func Encode(e Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}

func Decode(b []byte) (Envelope, error) {
	var e Envelope
	err := msgpack.Unmarshal(b, &e)
	return e, err
}

// CompatibleVersion reports whether v is this schema's current or
// immediately prior version, per spec §4.4.2.
func CompatibleVersion(v uint16) bool {
	return v == SchemaVersion || v == SchemaVersion-1
}
