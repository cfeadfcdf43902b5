package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"cosplayradar/internal/constants"
	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// Cache sits in front of one upstream fetch capability. It combines a TTL
// cache with an LRU entry bound and in-flight coalescing: for any key, at
// most one upstream call is outstanding at a time, and every concurrent
// caller for that key observes the same result or error.
//
// Rate-limited fetches are retried once after a fixed backoff and are never
// cached as failures.
type Cache[T any] struct {
	name       string
	ttl        time.Duration
	maxEntries int
	logger     zerolog.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry[T]
	order   *list.List // front = most recently used

	stopSweep chan struct{}
	sweepDone chan struct{}
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
	elem      *list.Element
}

func New[T any](name string, ttl time.Duration, maxEntries int, logger zerolog.Logger) *Cache[T] {
	if ttl <= 0 {
		ttl = constants.SourceCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = constants.SourceCacheEntries
	}
	return &Cache[T]{
		name:       name,
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger.With().Str("cache", name).Logger(),
		entries:    make(map[string]*entry[T]),
		order:      list.New(),
	}
}

// GetOrFetch returns the cached value for key, or runs fetch to fill it.
// Concurrent callers with the same key share one fetch.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A waiter may have queued just after the winner stored the value.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		var result T
		backoff := retry.WithMaxRetries(1, retry.NewConstant(constants.RateLimitBackoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			r, ferr := fetch(ctx)
			if errors.Is(ferr, domain.ErrRateLimited) {
				c.logger.Warn().Str("key", key).Msg("upstream rate limited, retrying once")
				return retry.RetryableError(ferr)
			}
			if ferr != nil {
				return ferr
			}
			result = r
			return nil
		})
		if err != nil {
			return nil, err
		}

		c.store(key, result)
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		c.logger.Debug().Str("key", key).Msg("fetch shared with concurrent caller")
	}
	return v.(T), nil
}

func (c *Cache[T]) lookup(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(e)
		var zero T
		return zero, false
	}
	c.order.MoveToFront(e.elem)
	return e.value, true
}

func (c *Cache[T]) store(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(e.elem)
		return
	}

	e := &entry[T]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry[T]))
	}
}

func (c *Cache[T]) removeLocked(e *entry[T]) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}

// Invalidate drops one key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// Len reports the current entry count.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			c.removeLocked(e)
			removed++
		}
	}
	return removed
}

// StartSweeper launches a background goroutine that sweeps expired entries
// on a fixed interval. Stop with StopSweeper.
func (c *Cache[T]) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = constants.CacheSweepInterval
	}
	c.stopSweep = make(chan struct{})
	c.sweepDone = make(chan struct{})

	go func() {
		defer close(c.sweepDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopSweep:
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.logger.Debug().Int("removed", n).Msg("cache sweep")
				}
			}
		}
	}()
}

func (c *Cache[T]) StopSweeper() {
	if c.stopSweep == nil {
		return
	}
	close(c.stopSweep)
	<-c.sweepDone
	c.stopSweep = nil
}
