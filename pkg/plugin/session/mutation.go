package session

import "sync"

// headerOp is one SET_RESPONSE_HEADER/REMOVE_RESPONSE_HEADER applied to
// the buffer, kept in issue order so replay is deterministic.
type headerOp struct {
	remove bool
	key    string
	value  string
}

// ResponseMutation accumulates everything a plugin writes against the
// response during RequestFilter/ResponseFilter/ResponseBodyFilter,
// applied synchronously as each write invoke is dispatched (spec §4.5:
// "writes are fire-and-forget from the plugin's perspective but are
// applied synchronously in the handler"). The Filter Pipeline reads
// this buffer once a phase settles to flush or synthesize a response.
type ResponseMutation struct {
	mu sync.Mutex

	statusSet bool
	status    int

	headerOps []headerOp

	bodySet bool
	body    []byte

	streamHeaderSet bool
	streamChunks    [][]byte
	streamEnded     bool
}

func newResponseMutation() *ResponseMutation {
	return &ResponseMutation{}
}

func (m *ResponseMutation) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.statusSet = true
}

func (m *ResponseMutation) SetHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headerOps = append(m.headerOps, headerOp{key: key, value: value})
}

func (m *ResponseMutation) RemoveHeader(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headerOps = append(m.headerOps, headerOp{remove: true, key: key})
}

func (m *ResponseMutation) SetFullBody(body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
	m.bodySet = true
}

func (m *ResponseMutation) StartStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamHeaderSet = true
}

func (m *ResponseMutation) AppendStreamChunk(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = append(m.streamChunks, chunk)
}

func (m *ResponseMutation) EndStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamEnded = true
}

// Snapshot is a point-in-time, allocation-cheap read of the buffer for
// the pipeline to apply to the real response.
type Snapshot struct {
	Status       int
	StatusSet    bool
	HeaderSets   map[string]string
	HeaderDrops  map[string]struct{}
	Body         []byte
	BodySet      bool
	Streaming    bool
	StreamChunks [][]byte
	StreamEnded  bool
}

// Snapshot replays headerOps in order into final set/drop maps, so a
// SET followed by a REMOVE (or vice versa) for the same key resolves to
// whichever happened last.
func (m *ResponseMutation) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	sets := map[string]string{}
	drops := map[string]struct{}{}
	for _, op := range m.headerOps {
		if op.remove {
			delete(sets, op.key)
			drops[op.key] = struct{}{}
			continue
		}
		delete(drops, op.key)
		sets[op.key] = op.value
	}

	return Snapshot{
		Status:       m.status,
		StatusSet:    m.statusSet,
		HeaderSets:   sets,
		HeaderDrops:  drops,
		Body:         m.body,
		BodySet:      m.bodySet,
		Streaming:    m.streamHeaderSet,
		StreamChunks: append([][]byte(nil), m.streamChunks...),
		StreamEnded:  m.streamEnded,
	}
}
