package provider

import (
	"context"
	"sync"
	"time"
)

// cachedValue memoizes the result of a fetch for a TTL. Failed fetches are not cached.
type cachedValue[T any] struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	value     T
	expiresAt time.Time
	valid     bool
}

func newCachedValue[T any](ttl time.Duration) *cachedValue[T] {
	return &cachedValue[T]{ttl: ttl, now: time.Now}
}

func (c *cachedValue[T]) get(ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	c.mu.RLock()
	if c.valid && c.now().Before(c.expiresAt) {
		v := c.value
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	c.value = v
	c.expiresAt = c.now().Add(c.ttl)
	c.valid = true
	c.mu.Unlock()
	return v, nil
}

func (c *cachedValue[T]) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.valid = false
}
