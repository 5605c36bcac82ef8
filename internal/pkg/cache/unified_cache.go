package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics tracks cache performance counters.
type Metrics struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// TTLCache is a generic in-memory cache with a fixed per-entry TTL. Writers
// use last-write-wins semantics; expired entries are reaped in the
// background.
type TTLCache[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	ttl     time.Duration
	name    string
	metrics Metrics
	logger  *zap.Logger
}

type entry[T any] struct {
	value      T
	expiration int64
}

// NewTTLCache creates a cache with the given TTL and a name used in logs.
func NewTTLCache[T any](ttl time.Duration, name string, logger *zap.Logger) *TTLCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TTLCache[T]{
		items:  make(map[string]entry[T]),
		ttl:    ttl,
		name:   name,
		logger: logger,
	}
	go c.cleanup()
	return c
}

// Set stores a value under key, resetting its TTL.
func (c *TTLCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:      value,
		expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	c.metrics.Sets++

	c.logger.Debug("Cache set",
		zap.String("cache", c.name),
		zap.String("key", key),
		zap.Duration("ttl", c.ttl),
	)
}

// Get returns the live value for key, if any. Expired entries count as
// misses.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found || time.Now().UnixNano() > item.expiration {
		c.metrics.Misses++
		var zero T
		c.logger.Debug("Cache miss",
			zap.String("cache", c.name),
			zap.String("key", key),
		)
		return zero, false
	}

	c.metrics.Hits++
	c.logger.Debug("Cache hit",
		zap.String("cache", c.name),
		zap.String("key", key),
	)
	return item.value, true
}

// Delete removes key from the cache.
func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all entries.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[T])
	c.logger.Info("Cache cleared", zap.String("cache", c.name))
}

// GetMetrics returns a snapshot of the hit/miss/set counters.
func (c *TTLCache[T]) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// Size returns the number of entries, including any not yet reaped.
func (c *TTLCache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *TTLCache[T]) cleanup() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now().UnixNano()
		expired := 0
		for key, item := range c.items {
			if now > item.expiration {
				delete(c.items, key)
				expired++
			}
		}
		if expired > 0 {
			c.logger.Info("Cache cleanup",
				zap.String("cache", c.name),
				zap.Int("expired_items", expired),
				zap.Int("remaining_items", len(c.items)),
			)
		}
		c.mu.Unlock()
	}
}
