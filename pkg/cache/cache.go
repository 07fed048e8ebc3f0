// Package cache implements a JSON read-through cache on top of redis. Cache
// faults are logged and treated as misses so callers always fall back to the
// source of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/redis"
)

// Cache stores JSON documents under namespaced keys.
type Cache struct {
	store   redis.CacheStore
	ttl     time.Duration
	logg    *logger.Logger
	enabled bool
}

// New returns a cache backed by store. A nil store yields a disabled cache
// that always loads from the source.
func New(store redis.CacheStore, ttl time.Duration, logg *logger.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, logg: logg, enabled: store != nil}
}

// Key builds a namespaced cache key.
func (c *Cache) Key(parts ...string) string {
	if c == nil || c.store == nil {
		return ""
	}
	return c.store.CacheKey(parts...)
}

// Fetch returns the cached value for key or calls load, caching its result.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if c != nil && c.enabled && key != "" {
		var cached T
		hit, err := c.get(ctx, key, &cached)
		if err != nil {
			c.warn(ctx, fmt.Sprintf("cache read failed key=%s: %v", key, err))
		}
		if hit {
			return cached, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if c != nil && c.enabled && key != "" {
		if err := c.Set(ctx, key, value); err != nil {
			c.warn(ctx, fmt.Sprintf("cache write failed key=%s: %v", key, err))
		}
	}
	return value, nil
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode cached value: %w", err)
	}
	return true, nil
}

// Set stores value as JSON with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil || !c.enabled {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.store.Set(ctx, key, string(payload), c.ttl)
}

// Invalidate drops the given keys. Failures are logged only.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || !c.enabled {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.warn(ctx, fmt.Sprintf("cache invalidate failed keys=%v: %v", keys, err))
	}
}

// InvalidatePrefix drops every key under prefix. Failures are logged only.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c == nil || !c.enabled {
		return
	}
	if _, err := c.store.DeletePrefix(ctx, prefix); err != nil {
		c.warn(ctx, fmt.Sprintf("cache prefix invalidate failed prefix=%s: %v", prefix, err))
	}
}

func (c *Cache) warn(ctx context.Context, msg string) {
	if c.logg != nil {
		c.logg.Warn(ctx, msg)
	}
}
