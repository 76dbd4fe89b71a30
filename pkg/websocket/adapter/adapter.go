// Package adapter provides the external pub/sub contract the WebSocket
// Bridge's room broadcast uses to fan a message out to other proxy
// processes (spec §4.8: "external adapter options: in-memory, redis,
// cluster"). The interface is deliberately small: publish one topic,
// subscribe one topic.
package adapter

import "context"

// Message is one payload delivered to a subscriber, tagged with the
// sending process's ID so a process can skip its own publishes when the
// adapter loops them back. It does not identify a connection.
type Message struct {
	Topic    string
	Payload  []byte
	SenderID string
	Binary   bool
}

// Adapter publishes to and subscribes from room topics across
// processes. Subscribe delivers messages on the returned channel until
// ctx is cancelled, at which point the adapter closes the channel.
type Adapter interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Close() error
}
