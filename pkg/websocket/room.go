package websocket

import (
	"context"
	"sync"

	"github.com/nylon-dev/nylon/pkg/websocket/adapter"
)

// Rooms is the process-local `room -> set<session>` map (spec §4.8).
// When an Adapter is configured, joining a room for the first time
// locally also subscribes this process to the room's remote topic.
type Rooms struct {
	mu      sync.Mutex
	members map[string]map[*Bridge]struct{}
	adapter adapter.Adapter
	unsub   map[string]context.CancelFunc
	selfTag string
}

func NewRooms(a adapter.Adapter, selfTag string) *Rooms {
	return &Rooms{
		members: make(map[string]map[*Bridge]struct{}),
		adapter: a,
		unsub:   make(map[string]context.CancelFunc),
		selfTag: selfTag,
	}
}

func (r *Rooms) join(ctx context.Context, room string, b *Bridge) {
	r.mu.Lock()
	set, ok := r.members[room]
	if !ok {
		set = make(map[*Bridge]struct{})
		r.members[room] = set
		if r.adapter != nil {
			r.subscribeLocked(ctx, room)
		}
	}
	set[b] = struct{}{}
	r.mu.Unlock()
}

// subscribeLocked must be called with r.mu held. It starts a goroutine
// that delivers remote publishes to every local room member except the
// one tagged as the original sender.
func (r *Rooms) subscribeLocked(ctx context.Context, room string) {
	subCtx, cancel := context.WithCancel(ctx)
	r.unsub[room] = cancel

	ch, err := r.adapter.Subscribe(subCtx, room)
	if err != nil {
		cancel()
		delete(r.unsub, room)
		return
	}

	go func() {
		for msg := range ch {
			if msg.SenderID == r.selfTag {
				continue
			}
			r.fanoutLocal(room, msg.Payload, msg.Binary)
		}
	}()
}

func (r *Rooms) leave(room string, b *Bridge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[room]
	if !ok {
		return
	}
	delete(set, b)
	if len(set) == 0 {
		delete(r.members, room)
		if cancel, ok := r.unsub[room]; ok {
			cancel()
			delete(r.unsub, room)
		}
	}
}

func (r *Rooms) leaveAll(b *Bridge) {
	r.mu.Lock()
	joined := make([]string, 0, len(r.members))
	for room, set := range r.members {
		if _, ok := set[b]; ok {
			joined = append(joined, room)
		}
	}
	r.mu.Unlock()
	for _, room := range joined {
		r.leave(room, b)
	}
}

// broadcast fans a message out to every local member of room (honoring
// excludeSender) and publishes it to the adapter so other processes'
// members also receive it.
func (r *Rooms) broadcast(ctx context.Context, room string, payload []byte, binary bool, sender *Bridge, excludeSender bool) {
	r.mu.Lock()
	var exclude *Bridge
	if excludeSender {
		exclude = sender
	}
	r.fanoutLockedExcept(room, payload, binary, exclude)
	r.mu.Unlock()

	if r.adapter != nil {
		_ = r.adapter.Publish(ctx, room, adapter.Message{Topic: room, Payload: payload, SenderID: r.selfTag, Binary: binary})
	}
}

func (r *Rooms) fanoutLocal(room string, payload []byte, binary bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fanoutLockedExcept(room, payload, binary, nil)
}

func (r *Rooms) fanoutLockedExcept(room string, payload []byte, binary bool, exclude *Bridge) {
	for b := range r.members[room] {
		if b == exclude {
			continue
		}
		b.writeAsync(payload, binary)
	}
}
