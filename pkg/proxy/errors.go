package proxy

import (
	"errors"

	"github.com/nylon-dev/nylon/pkg/proxy/types"
	"github.com/nylon-dev/nylon/pkg/route"
)

// errTimeout and errNoHealthyEndpoint are the sentinel causes server.go
// attaches to an UpstreamError to pick the right
// wire response without string-matching the underlying error.
var (
	errTimeout           = errors.New("proxy: upstream timeout")
	errNoHealthyEndpoint = errors.New("proxy: no healthy endpoint")
)

// RouteError wraps a route.ErrNoMatch/ErrMethodNotAllowed with the path
// that failed to match, so a handler can log it without re-deriving it
// from the request.
type RouteError struct {
	Path string
	Err  error
}

func (e *RouteError) Error() string { return e.Err.Error() }
func (e *RouteError) Unwrap() error { return e.Err }

// UpstreamError wraps a failure reaching a selected endpoint (connection
// refused, dial timeout, context deadline) distinct from a route-level
// or middleware-level failure.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// HandleError converts an error raised anywhere in the request lifecycle
// into the JSON body the proxy core writes back to the client.
func HandleError(err error) *types.ErrorResponse {
	var routeErr *RouteError
	if errors.As(err, &routeErr) {
		if errors.Is(routeErr.Err, route.ErrMethodNotAllowed) {
			return types.NewMethodNotAllowedError(routeErr.Error())
		}
		return types.NewNotFoundError(routeErr.Error())
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		if errors.Is(upstreamErr.Err, errTimeout) {
			return types.NewGatewayTimeoutError(upstreamErr.Error())
		}
		return types.NewBadGatewayError(upstreamErr.Error())
	}

	if errors.Is(err, errNoHealthyEndpoint) {
		return types.NewServiceUnavailableError(err.Error())
	}

	return types.NewServerError("an internal error occurred")
}
