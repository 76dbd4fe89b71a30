package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisAdapter_PublishSubscribeRoundTrip(t *testing.T) {
	_, client := setupMiniredis(t)
	r := NewRedisFromClient(client, "nylon:ws:")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Subscribe(ctx, "lobby")
	require.NoError(t, err)

	require.NoError(t, r.Publish(context.Background(), "lobby", Message{
		Topic: "lobby", Payload: []byte("hi"), SenderID: "a", Binary: true,
	}))

	select {
	case msg := <-ch:
		assert.Equal(t, []byte("hi"), msg.Payload)
		assert.Equal(t, "a", msg.SenderID)
		assert.True(t, msg.Binary)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a delivered message")
	}
}

func TestClusterAdapter_SameTopicAlwaysPicksSameShard(t *testing.T) {
	_, c1 := setupMiniredis(t)
	_, c2 := setupMiniredis(t)

	cluster := NewClusterFromClients([]*redis.Client{c1, c2}, "nylon:ws:")

	first := cluster.shardFor("lobby")
	second := cluster.shardFor("lobby")
	assert.Same(t, first, second)
}

func TestClusterAdapter_PublishSubscribeRoundTrip(t *testing.T) {
	_, c1 := setupMiniredis(t)
	_, c2 := setupMiniredis(t)
	cluster := NewClusterFromClients([]*redis.Client{c1, c2}, "nylon:ws:")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := cluster.Subscribe(ctx, "room-x")
	require.NoError(t, err)

	require.NoError(t, cluster.Publish(context.Background(), "room-x", Message{Topic: "room-x", Payload: []byte("sharded")}))

	select {
	case msg := <-ch:
		assert.Equal(t, []byte("sharded"), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a delivered message routed through the correct shard")
	}
}
