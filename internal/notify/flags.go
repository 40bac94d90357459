package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryFlags keeps flags in process.
type MemoryFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryFlags returns flags with the named notifications enabled.
func NewMemoryFlags(enabled ...string) *MemoryFlags {
	f := &MemoryFlags{flags: make(map[string]bool, len(enabled))}
	for _, name := range enabled {
		f.flags[name] = true
	}
	return f
}

// Enabled implements Flags.
func (f *MemoryFlags) Enabled(_ context.Context, name string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags[name], nil
}

// SetEnabled implements Flags.
func (f *MemoryFlags) SetEnabled(_ context.Context, name string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[name] = enabled
	return nil
}

// DefaultRedisKey is the hash holding one field per notification.
const DefaultRedisKey = "tissuecore:notifications"

// RedisFlags keeps flags in a redis hash so every instance of the service
// shares them.
type RedisFlags struct {
	client redis.UniversalClient
	key    string
}

// NewRedisFlags stores flags under key, or DefaultRedisKey when key is empty.
func NewRedisFlags(client redis.UniversalClient, key string) *RedisFlags {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisFlags{client: client, key: key}
}

// Enabled implements Flags.
func (f *RedisFlags) Enabled(ctx context.Context, name string) (bool, error) {
	v, err := f.client.HGet(ctx, f.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis hget: %w", err)
	}
	return v == "1", nil
}

// SetEnabled implements Flags.
func (f *RedisFlags) SetEnabled(ctx context.Context, name string, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	if err := f.client.HSet(ctx, f.key, name, v).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}
