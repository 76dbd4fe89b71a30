//go:build !cgo
// +build !cgo

package localffi

import (
	"context"
	"errors"

	"github.com/nylon-dev/nylon/pkg/plugin/transport"
)

var errCGODisabled = errors.New("localffi: plugin transport requires CGO_ENABLED=1")

// Transport stub for non-CGO builds. Local-FFI plugins dlopen a native
// shared object, which is unavailable without cgo; configurations naming
// a local-ffi plugin backend fail to commit in this build instead of
// silently degrading, since there is no safe in-process fallback for
// "run this .so".
type Transport struct{}

func Load(_, _ string) (*Transport, error) {
	return nil, errCGODisabled
}

func (t *Transport) Initialize([]byte) {}

func (t *Transport) Shutdown(context.Context) error { return nil }

func (t *Transport) Open(context.Context, string, string, []byte) (transport.SessionHandle, error) {
	return 0, errCGODisabled
}

func (t *Transport) SendEvent(context.Context, transport.SessionHandle, transport.Event) error {
	return errCGODisabled
}

func (t *Transport) TryRecvInvoke(transport.SessionHandle) (transport.Invoke, bool, error) {
	return transport.Invoke{}, false, errCGODisabled
}

func (t *Transport) Close(context.Context, transport.SessionHandle) error {
	return errCGODisabled
}
