package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nylon-dev/nylon/pkg/plugin/session"
	"github.com/nylon-dev/nylon/pkg/proxy/types"
)

// responseView adapts an upstream *http.Response (the result of the
// http-service dispatch in C9) to session.ResponseView, so plugin steps
// running in ResponseFilter/ResponseBodyFilter/Logging can inspect it
// through READ_RESPONSE_* invocations without this package depending on
// the plugin ABI's wire encoding.
type responseView struct {
	headers   map[string]string
	status    int
	byteCount int64
	duration  time.Duration
	err       string

	mu       sync.Mutex
	bodyRead bool
	body     []byte
	bodyErr  error
	source   io.ReadCloser
}

// newUpstreamResponseView wraps a live upstream response. The body is
// not read until FullBody is called, so a plugin that never inspects
// the body doesn't pay for buffering it.
func newUpstreamResponseView(resp *http.Response, duration time.Duration) *responseView {
	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}
	return &responseView{
		headers:  headers,
		status:   resp.StatusCode,
		duration: duration,
		source:   resp.Body,
	}
}

// newErrorResponseView synthesizes a ResponseView for a request the
// proxy core terminated itself (no route, no healthy endpoint, upstream
// failure) so the Logging phase sees the same shape it would for a real
// upstream response.
func newErrorResponseView(status int, body []byte, cause error, duration time.Duration) *responseView {
	errStr := ""
	if cause != nil {
		errStr = cause.Error()
	}
	return &responseView{
		headers:   map[string]string{"Content-Type": "application/json"},
		status:    status,
		byteCount: int64(len(body)),
		duration:  duration,
		err:       errStr,
		bodyRead:  true,
		body:      body,
	}
}

func (v *responseView) FullBody(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bodyRead {
		return v.body, v.bodyErr
	}
	v.bodyRead = true
	if v.source == nil {
		return nil, nil
	}
	b, err := io.ReadAll(io.LimitReader(v.source, MaxRequestBodySize+1))
	if err != nil {
		v.bodyErr = err
		return nil, err
	}
	v.body = b
	v.byteCount = int64(len(b))
	return v.body, nil
}

func (v *responseView) Headers() map[string]string { return v.headers }
func (v *responseView) Status() int                 { return v.status }
func (v *responseView) ByteCount() int64            { return v.byteCount }
func (v *responseView) Duration() time.Duration     { return v.duration }
func (v *responseView) Error() string               { return v.err }

// recordByteCount lets server.go update ByteCount once it knows how
// many bytes actually went out on the wire, for responses streamed
// directly through without ever calling FullBody.
func (v *responseView) recordByteCount(n int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.bodyRead {
		v.byteCount = n
	}
}

// ApplyMutation writes a plugin's accumulated session.Snapshot onto the
// real http.ResponseWriter, falling back to the base upstream response
// for anything the plugin didn't touch. base may be nil when the
// mutation is the entire response (a plugin-kind service, spec §4.3).
func ApplyMutation(w http.ResponseWriter, snap session.Snapshot, base *responseView) (int64, error) {
	header := w.Header()
	if base != nil {
		for k, v := range base.Headers() {
			header.Set(k, v)
		}
	}
	for k, v := range snap.HeaderSets {
		header.Set(k, v)
	}
	for k := range snap.HeaderDrops {
		header.Del(k)
	}

	status := http.StatusOK
	if base != nil {
		status = base.Status()
	}
	if snap.StatusSet {
		status = snap.Status
	}

	if snap.Streaming {
		header.Set("Transfer-Encoding", "chunked")
		w.WriteHeader(status)
		var n int64
		flusher, _ := w.(http.Flusher)
		for _, chunk := range snap.StreamChunks {
			written, err := w.Write(chunk)
			n += int64(written)
			if err != nil {
				return n, err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		return n, nil
	}

	if snap.BodySet {
		w.WriteHeader(status)
		n, err := w.Write(snap.Body)
		return int64(n), err
	}

	if base != nil {
		w.WriteHeader(status)
		body, err := base.FullBody(context.Background())
		if err != nil {
			return 0, err
		}
		n, err := w.Write(body)
		return int64(n), err
	}

	w.WriteHeader(status)
	return 0, nil
}

// WriteJSONResponse writes a JSON-encoded body with the given status,
// used for the proxy core's own terminal responses (errors, health).
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("proxy: encode json response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes the JSON error body for a request the
// proxy core failed on its own behalf.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}
