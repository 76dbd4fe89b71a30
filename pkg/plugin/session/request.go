package session

import (
	"context"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
)

// RequestView is the read-only surface a Handler needs to answer
// READ_REQUEST_* invocations (spec §4.6). Implemented by whatever the
// Filter Pipeline wraps a real *http.Request in; kept minimal and
// HTTP-library-agnostic so this package never imports net/http.
type RequestView interface {
	FullBody(ctx context.Context) ([]byte, error)
	Header(name string) (string, bool)
	Headers() map[string]string
	URL() string
	Path() string
	Query() string
	Params() map[string]string
	Host() string
	ClientIP() string
	Method() string
	ContentLength() int64
	TimestampUnixMilli() int64
}

// WebSocketHandler is the optional capability a Handler forwards
// WEBSOCKET_* invocations (method ids 300-399) to, once the bridge (C8)
// has upgraded the connection. A Handler created for a plain HTTP
// middleware step never receives one and fails the running phase with
// an error on any WEBSOCKET_* invoke.
type WebSocketHandler interface {
	Dispatch(ctx context.Context, method abi.Method, payload []byte) (reply []byte, err error)
}
