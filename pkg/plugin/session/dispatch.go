package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
)

// ResponseView is the read-only surface a Handler needs to answer
// READ_RESPONSE_* invocations during ResponseFilter/ResponseBodyFilter/
// Logging. Set via SetResponseView once the upstream response exists;
// nil during RequestFilter, where these methods are not meaningful.
type ResponseView interface {
	FullBody(ctx context.Context) ([]byte, error)
	Headers() map[string]string
	Status() int
	ByteCount() int64
	Duration() time.Duration
	Error() string
}

// SetResponseView attaches the upstream response view once it exists,
// ahead of running ResponseFilter.
func (h *Handler) SetResponseView(rv ResponseView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resp = rv
}

func (h *Handler) dispatchResponseWrite(ctx context.Context, phase abi.Phase, inv transport.Invoke) (Verdict, bool, error) {
	switch inv.Method {
	case abi.SET_RESPONSE_HEADER:
		rec, err := abi.DecodeHeader(inv.Payload)
		if err != nil {
			return VerdictContinue, false, err
		}
		h.mutation.SetHeader(rec.Key, rec.Value)
		return VerdictContinue, false, nil

	case abi.REMOVE_RESPONSE_HEADER:
		rec, err := abi.DecodeHeader(inv.Payload)
		if err != nil {
			return VerdictContinue, false, err
		}
		h.mutation.RemoveHeader(rec.Key)
		return VerdictContinue, false, nil

	case abi.SET_RESPONSE_STATUS:
		status, err := abi.DecodeStatus(inv.Payload)
		if err != nil {
			return VerdictContinue, false, err
		}
		h.mutation.SetStatus(status)
		return VerdictContinue, false, nil

	case abi.SET_RESPONSE_FULL_BODY:
		h.mutation.SetFullBody(inv.Payload)
		return VerdictContinue, false, nil

	case abi.SET_RESPONSE_STREAM_HEADER:
		h.mutation.StartStream()
		return VerdictContinue, false, nil

	case abi.SET_RESPONSE_STREAM_DATA:
		h.mutation.AppendStreamChunk(inv.Payload)
		return VerdictContinue, false, nil

	case abi.SET_RESPONSE_STREAM_END:
		h.mutation.EndStream()
		return VerdictContinue, false, nil

	case abi.READ_RESPONSE_FULL_BODY:
		rv := h.responseView()
		if rv == nil {
			return h.reply(ctx, phase, inv.Method, nil)
		}
		body, err := rv.FullBody(ctx)
		if err != nil {
			return VerdictContinue, false, err
		}
		return h.reply(ctx, phase, inv.Method, body)

	case abi.READ_RESPONSE_HEADERS:
		rv := h.responseView()
		if rv == nil {
			return h.reply(ctx, phase, inv.Method, abi.EncodeHeaders(nil))
		}
		return h.reply(ctx, phase, inv.Method, abi.EncodeHeaders(headerRecords(rv.Headers())))

	case abi.READ_RESPONSE_STATUS:
		rv := h.responseView()
		status := 0
		if rv != nil {
			status = rv.Status()
		}
		return h.reply(ctx, phase, inv.Method, abi.EncodeStatus(status))

	case abi.READ_RESPONSE_BYTES:
		rv := h.responseView()
		var n int64
		if rv != nil {
			n = rv.ByteCount()
		}
		return h.reply(ctx, phase, inv.Method, abi.EncodeNumber(n))

	case abi.READ_RESPONSE_DURATION:
		rv := h.responseView()
		var ms int64
		if rv != nil {
			ms = rv.Duration().Milliseconds()
		}
		return h.reply(ctx, phase, inv.Method, abi.EncodeNumber(ms))

	case abi.READ_RESPONSE_ERROR:
		rv := h.responseView()
		errStr := ""
		if rv != nil {
			errStr = rv.Error()
		}
		return h.reply(ctx, phase, inv.Method, []byte(errStr))

	default:
		return VerdictContinue, false, fmt.Errorf("session: unhandled response-write method %d", inv.Method)
	}
}

func (h *Handler) responseView() ResponseView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resp
}

func (h *Handler) dispatchRequestRead(ctx context.Context, phase abi.Phase, inv transport.Invoke) (Verdict, bool, error) {
	switch inv.Method {
	case abi.READ_REQUEST_FULL_BODY:
		body, err := h.req.FullBody(ctx)
		if err != nil {
			return VerdictContinue, false, err
		}
		return h.reply(ctx, phase, inv.Method, body)

	case abi.READ_REQUEST_HEADER:
		name := string(inv.Payload)
		value, _ := h.req.Header(name)
		return h.reply(ctx, phase, inv.Method, abi.EncodeHeader(abi.HeaderRecord{Key: name, Value: value}))

	case abi.READ_REQUEST_HEADERS:
		return h.reply(ctx, phase, inv.Method, abi.EncodeHeaders(headerRecords(h.req.Headers())))

	case abi.READ_REQUEST_URL:
		return h.reply(ctx, phase, inv.Method, []byte(h.req.URL()))

	case abi.READ_REQUEST_PATH:
		return h.reply(ctx, phase, inv.Method, []byte(h.req.Path()))

	case abi.READ_REQUEST_QUERY:
		return h.reply(ctx, phase, inv.Method, []byte(h.req.Query()))

	case abi.READ_REQUEST_PARAMS:
		payload, err := abi.EncodeJSON(h.req.Params())
		if err != nil {
			return VerdictContinue, false, err
		}
		return h.reply(ctx, phase, inv.Method, payload)

	case abi.READ_REQUEST_HOST:
		return h.reply(ctx, phase, inv.Method, []byte(h.req.Host()))

	case abi.READ_REQUEST_CLIENT_IP:
		return h.reply(ctx, phase, inv.Method, []byte(h.req.ClientIP()))

	case abi.READ_REQUEST_METHOD:
		return h.reply(ctx, phase, inv.Method, []byte(h.req.Method()))

	case abi.READ_REQUEST_BYTES:
		return h.reply(ctx, phase, inv.Method, abi.EncodeNumber(h.req.ContentLength()))

	case abi.READ_REQUEST_TIMESTAMP:
		return h.reply(ctx, phase, inv.Method, abi.EncodeNumber(h.req.TimestampUnixMilli()))

	default:
		return VerdictContinue, false, fmt.Errorf("session: unhandled request-read method %d", inv.Method)
	}
}

func headerRecords(m map[string]string) []abi.HeaderRecord {
	records := make([]abi.HeaderRecord, 0, len(m))
	for k, v := range m {
		records = append(records, abi.HeaderRecord{Key: k, Value: v})
	}
	return records
}
