package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"teamhub/backend/internal/logger"
)

type Cache interface {
	Set(key string, value interface{}, ttl time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	DeletePattern(pattern string) error
	Exists(key string) (bool, error)
	Stats() map[string]interface{}
	Health() error
	Close() error
}

// MultiLevelCache reads through an in-process tier and an optional Redis
// tier. Redis failures trip a circuit breaker and degrade to L1 only; they
// are never surfaced to callers as anything but a miss.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	l1TTL   time.Duration
	breaker *CircuitBreaker
	metrics *CacheMetrics
}

type Option func(*MultiLevelCache)

// WithBreaker replaces the default thresholds of the Redis tier breaker.
func WithBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *MultiLevelCache) {
		c.breaker = NewCircuitBreaker("redis_cache", cfg)
	}
}

func NewMultiLevelCache(redisCache *RedisCache, l1TTL time.Duration, opts ...Option) *MultiLevelCache {
	if l1TTL <= 0 {
		l1TTL = time.Minute
	}
	c := &MultiLevelCache{
		l1:      NewMemoryCache(),
		l2:      redisCache,
		l1TTL:   l1TTL,
		breaker: NewCircuitBreaker("redis_cache", DefaultCircuitBreakerConfig()),
		metrics: NewCacheMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MultiLevelCache) l1Duration(ttl time.Duration) time.Duration {
	if ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}

func (c *MultiLevelCache) withL2(op string, fn func(*RedisCache) error) error {
	if c.l2 == nil {
		return ErrCacheDown
	}
	err := c.breaker.Execute(func() error {
		err := fn(c.l2)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	switch {
	case errors.Is(err, ErrCircuitBreakerOpen):
		c.metrics.RecordSkip(TierRedis)
	case err != nil:
		c.metrics.RecordError(TierRedis)
		logger.Warn("redis cache operation failed", "op", op, "error", err)
	}
	return err
}

func (c *MultiLevelCache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.metrics.RecordSet()
	c.l1.Set(key, json.RawMessage(data), c.l1Duration(ttl))

	if c.l2 != nil {
		_ = c.withL2("set", func(r *RedisCache) error { return r.Set(key, value, ttl) })
	}
	return nil
}

func (c *MultiLevelCache) Get(key string, dest interface{}) error {
	c.metrics.RecordLookup()
	if value, found := c.l1.Get(key); found {
		c.metrics.RecordHit(TierMemory)
		return copyValue(value, dest)
	}
	c.metrics.RecordMiss(TierMemory)

	if c.l2 != nil {
		hit := false
		err := c.withL2("get", func(r *RedisCache) error {
			err := r.Get(key, dest)
			hit = err == nil
			return err
		})
		if err == nil && hit {
			c.metrics.RecordHit(TierRedis)
			if data, err := json.Marshal(dest); err == nil {
				c.l1.Set(key, json.RawMessage(data), c.l1TTL)
			}
			return nil
		}
		if err == nil {
			c.metrics.RecordMiss(TierRedis)
		}
	}

	return ErrCacheMiss
}

func (c *MultiLevelCache) Delete(key string) error {
	c.metrics.RecordDelete()
	c.l1.Delete(key)

	if c.l2 != nil {
		return c.withL2("delete", func(r *RedisCache) error { return r.Delete(key) })
	}
	return nil
}

func (c *MultiLevelCache) DeletePattern(pattern string) error {
	c.metrics.RecordDelete()
	c.l1.DeletePattern(pattern)

	if c.l2 != nil {
		return c.withL2("delete_pattern", func(r *RedisCache) error { return r.DeletePattern(pattern) })
	}
	return nil
}

func (c *MultiLevelCache) Exists(key string) (bool, error) {
	if _, found := c.l1.Get(key); found {
		return true, nil
	}

	if c.l2 != nil {
		return c.l2.Exists(key)
	}
	return false, nil
}

func (c *MultiLevelCache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Stats merges the lookup counters with each tier's own storage stats.
func (c *MultiLevelCache) Stats() map[string]interface{} {
	m := c.metrics.Snapshot()
	l1 := c.l1.Stats()
	l1["lookups"] = m.L1
	stats := map[string]interface{}{
		"l1":       l1,
		"hits":     m.Hits,
		"misses":   m.Misses,
		"hit_rate": m.HitRate,
		"sets":     m.Sets,
		"deletes":  m.Deletes,
		"breaker":  c.breaker.GetStats(),
	}

	if c.l2 != nil {
		l2 := c.l2.Stats()
		l2["lookups"] = m.L2
		stats["l2"] = l2
	}
	return stats
}

func (c *MultiLevelCache) Health() error {
	if c.l2 != nil {
		return c.l2.Health()
	}
	return nil
}

func (c *MultiLevelCache) Close() error {
	c.l1.Close()
	return nil
}

func copyValue(src, dest interface{}) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr {
		return fmt.Errorf("destination must be a pointer, got %T", dest)
	}
	if destValue.IsNil() {
		return fmt.Errorf("destination pointer is nil")
	}

	data, ok := src.(json.RawMessage)
	if !ok {
		var err error
		if data, err = json.Marshal(src); err != nil {
			return fmt.Errorf("failed to marshal source value: %w", err)
		}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal to destination: %w", err)
	}
	return nil
}
