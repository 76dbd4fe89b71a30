package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Redis is a single-instance pub/sub Adapter (spec §4.8's "redis"
// option), keyed under a configurable prefix so multiple room
// namespaces can share one Redis instance.
type Redis struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every topic's pub/sub channel name, e.g.
	// "nylon:ws:".
	Prefix string
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("adapter: redis connection failed: %w", err)
	}

	return &Redis{client: client, prefix: cfg.Prefix}, nil
}

// NewRedisFromClient wraps an already-constructed client, used by tests
// against miniredis and by the cluster adapter's per-shard client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) channel(topic string) string {
	return r.prefix + topic
}

func (r *Redis) Publish(ctx context.Context, topic string, msg Message) error {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("adapter: encode message: %w", err)
	}
	return r.client.Publish(ctx, r.channel(topic), data).Err()
}

func (r *Redis) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	sub := r.client.Subscribe(ctx, r.channel(topic))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("adapter: subscribe %q: %w", topic, err)
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		raw := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-raw:
				if !ok {
					return
				}
				var msg Message
				if err := msgpack.Unmarshal([]byte(m.Payload), &msg); err != nil {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
