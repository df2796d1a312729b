package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/live-canvas/internal/config"
	"github.com/weiawesome/live-canvas/pkg/log"
)

// RedisRegistry keeps "<prefix>:instance:<id>" -> advertise address alive
// with a TTL refreshed by a heartbeat.
type RedisRegistry struct {
	client            *redis.Client
	instanceID        string
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	registered        bool
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisRegistry(client *redis.Client, cfg config.RegistryConfig, instanceID, advertiseAddress string) *RedisRegistry {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "canvas:registry"
	}
	return &RedisRegistry{
		client:            client,
		instanceID:        instanceID,
		advertiseAddress:  advertiseAddress,
		prefix:            prefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
	}
}

func (r *RedisRegistry) keyFor(instanceID string) string {
	return fmt.Sprintf("%s:instance:%s", r.prefix, instanceID)
}

func (r *RedisRegistry) Register(ctx context.Context) error {
	key := r.keyFor(r.instanceID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}

	r.mu.Lock()
	r.registered = true
	r.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldInstanceID, r.instanceID).Str("address", r.advertiseAddress).Msg("registered relay instance")
	return nil
}

func (r *RedisRegistry) Deregister(ctx context.Context) error {
	r.mu.Lock()
	r.registered = false
	r.mu.Unlock()

	if err := r.client.Del(ctx, r.keyFor(r.instanceID)).Err(); err != nil {
		return fmt.Errorf("failed to deregister instance: %w", err)
	}

	l := log.L()
	l.Info().Str(log.FieldInstanceID, r.instanceID).Msg("deregistered relay instance")
	return nil
}

// Peers lists every live instance, this one included, sorted by id.
func (r *RedisRegistry) Peers(ctx context.Context) ([]Instance, error) {
	pattern := r.keyFor("*")
	keyPrefix := r.keyFor("")

	var instances []Instance
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		addr, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lookup instance: %w", err)
		}
		instances = append(instances, Instance{
			ID:      strings.TrimPrefix(key, keyPrefix),
			Address: addr,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan instances: %w", err)
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	return instances, nil
}

func (r *RedisRegistry) StartHeartbeat(ctx context.Context) error {
	if r.heartbeatInterval <= 0 {
		return fmt.Errorf("invalid heartbeat interval %s", r.heartbeatInterval)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("registry heartbeat started")
	return nil
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *RedisRegistry) refresh(ctx context.Context) {
	r.mu.RLock()
	registered := r.registered
	r.mu.RUnlock()
	if !registered {
		return
	}

	key := r.keyFor(r.instanceID)
	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		l := log.L()
		l.Error().Str("key", key).Err(err).Msg("failed to refresh key")
	}
}

func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Close stops the heartbeat. The Redis client is owned by the caller.
func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()
	return nil
}
