package adapter

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// Cluster is the client-sharded redis Adapter (spec §4.8's "cluster"
// option): each room is pinned to one shard by hashing its topic name,
// rather than relying on Redis Cluster's own pub/sub fanout (which
// does not cross shards). Every process configured with the same shard
// list resolves a given topic to the same shard.
type Cluster struct {
	shards []*Redis
}

func NewCluster(shardAddrs []string, prefix string) (*Cluster, error) {
	if len(shardAddrs) == 0 {
		return nil, fmt.Errorf("adapter: cluster requires at least one shard address")
	}
	shards := make([]*Redis, len(shardAddrs))
	for i, addr := range shardAddrs {
		r, err := NewRedis(RedisConfig{Addr: addr, Prefix: prefix})
		if err != nil {
			for _, opened := range shards[:i] {
				if opened != nil {
					_ = opened.Close()
				}
			}
			return nil, fmt.Errorf("adapter: cluster shard %q: %w", addr, err)
		}
		shards[i] = r
	}
	return &Cluster{shards: shards}, nil
}

// NewClusterFromClients builds a Cluster over already-constructed
// clients, used by tests against a set of miniredis instances.
func NewClusterFromClients(clients []*redis.Client, prefix string) *Cluster {
	shards := make([]*Redis, len(clients))
	for i, c := range clients {
		shards[i] = NewRedisFromClient(c, prefix)
	}
	return &Cluster{shards: shards}
}

func (c *Cluster) shardFor(topic string) *Redis {
	h := xxhash.Sum64String(topic)
	return c.shards[h%uint64(len(c.shards))]
}

func (c *Cluster) Publish(ctx context.Context, topic string, msg Message) error {
	return c.shardFor(topic).Publish(ctx, topic, msg)
}

func (c *Cluster) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	return c.shardFor(topic).Subscribe(ctx, topic)
}

func (c *Cluster) Close() error {
	var firstErr error
	for _, s := range c.shards {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
