package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tanpawarit/kirana-assistant/pkg/upstash"
)

// Cache stores finished translations by normalized key.
type Cache interface {
	Get(ctx context.Context, key string) (map[string]string, bool)
	Set(ctx context.Context, key string, value map[string]string)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]map[string]string{}}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return copyMap(v), true
}

func (c *MemoryCache) Set(ctx context.Context, key string, value map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = copyMap(value)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// KV is the subset of the Upstash client the shared cache uses.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// UpstashCache keeps translations in Redis, fronted by a MemoryCache. Remote
// errors go to onErr and count as misses.
type UpstashCache struct {
	local *MemoryCache
	kv    KV
	ttl   time.Duration
	onErr func(ctx context.Context, op string, err error)
}

func NewUpstashCache(kv KV, ttl time.Duration, onErr func(ctx context.Context, op string, err error)) *UpstashCache {
	if onErr == nil {
		onErr = func(context.Context, string, error) {}
	}
	return &UpstashCache{local: NewMemoryCache(), kv: kv, ttl: ttl, onErr: onErr}
}

func (c *UpstashCache) Get(ctx context.Context, key string) (map[string]string, bool) {
	if v, ok := c.local.Get(ctx, key); ok {
		return v, true
	}

	raw, err := c.kv.Get(ctx, redisKey(key))
	if errors.Is(err, upstash.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.onErr(ctx, "get", err)
		return nil, false
	}

	var v map[string]string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.onErr(ctx, "decode", fmt.Errorf("decode cached translation: %w", err))
		return nil, false
	}
	c.local.Set(ctx, key, v)
	return v, true
}

func (c *UpstashCache) Set(ctx context.Context, key string, value map[string]string) {
	c.local.Set(ctx, key, value)

	payload, err := json.Marshal(value)
	if err != nil {
		c.onErr(ctx, "encode", err)
		return
	}
	if err := c.kv.Set(ctx, redisKey(key), string(payload), c.ttl); err != nil {
		c.onErr(ctx, "set", err)
	}
}

func redisKey(key string) string { return "translate:" + key }

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
