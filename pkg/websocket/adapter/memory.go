package adapter

import (
	"context"
	"sync"
)

// Memory is the in-memory Adapter: broadcast is a pure local fanout,
// scoped to this process. Every Subscribe to the same topic receives
// every Publish to that topic, including the publisher's own (the
// bridge is responsible for excluding the sender by SenderID, same as
// the other Adapter implementations).
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]chan Message
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan Message)}
}

func (m *Memory) Publish(ctx context.Context, topic string, msg Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs[topic] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Slow subscriber drops the message rather than blocking
			// the publisher; callers only use this for best-effort
			// local fanout.
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	ch := make(chan Message, 16)

	m.mu.Lock()
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[topic]
		for i, c := range subs {
			if c == ch {
				m.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (m *Memory) Close() error { return nil }
