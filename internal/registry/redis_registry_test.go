package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/live-canvas/internal/config"
)

// redisClient connects to REDIS_ADDRESS or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRegistryPeers(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	cfg := config.RegistryConfig{
		Prefix:            "canvas:test:" + uuid.NewString(),
		KeyTTL:            time.Minute,
		HeartbeatInterval: 50 * time.Millisecond,
	}

	a := NewRedisRegistry(client, cfg, "a", "10.0.0.1:4000")
	b := NewRedisRegistry(client, cfg, "b", "10.0.0.2:4000")
	require.NoError(t, b.Register(ctx))
	require.NoError(t, a.Register(ctx))

	peers, err := a.Peers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Instance{{ID: "a", Address: "10.0.0.1:4000"}, {ID: "b", Address: "10.0.0.2:4000"}}, peers)

	require.NoError(t, b.Deregister(ctx))
	peers, err = a.Peers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Instance{{ID: "a", Address: "10.0.0.1:4000"}}, peers)

	require.NoError(t, a.Deregister(ctx))
}

func TestRedisRegistryHeartbeatRefreshesTTL(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	cfg := config.RegistryConfig{
		Prefix:            "canvas:test:" + uuid.NewString(),
		KeyTTL:            time.Second,
		HeartbeatInterval: 100 * time.Millisecond,
	}

	r := NewRedisRegistry(client, cfg, "a", "addr")
	require.NoError(t, r.Register(ctx))
	require.NoError(t, r.StartHeartbeat(ctx))
	defer r.Close()

	time.Sleep(1500 * time.Millisecond)
	peers, err := r.Peers(ctx)
	require.NoError(t, err)
	assert.Len(t, peers, 1)

	require.NoError(t, r.Deregister(ctx))
}

func TestStartHeartbeatRejectsZeroInterval(t *testing.T) {
	r := NewRedisRegistry(nil, config.RegistryConfig{}, "a", "addr")
	assert.Error(t, r.StartHeartbeat(context.Background()))
	assert.NoError(t, r.Close())
}
