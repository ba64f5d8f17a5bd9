package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Lookup outcomes reported to an Observer.
const (
	LookupHit  = "hit"
	LookupJoin = "join"
	LookupMiss = "miss"
)

// DefaultTTL applies when Memoize is called with a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// Observer receives one call per Memoize lookup.
type Observer func(outcome string)

type entry struct {
	done    chan struct{}
	value   any
	expires time.Time
}

func (e *entry) live(now time.Time) bool {
	select {
	case <-e.done:
		return now.Before(e.expires)
	default:
		return true
	}
}

// Cache memoizes producer results per key with a TTL. At most one producer
// runs per key at a time; concurrent callers for the same key join it.
type Cache struct {
	entries  *xsync.Map[string, *entry]
	now      func() time.Time
	observer Observer
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver installs a lookup observer.
func WithObserver(observer Observer) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: xsync.NewMap[string, *entry](),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Memoize returns the cached value for key or computes it with producer.
//
// The producer runs detached from the caller's cancellation so that a caller
// giving up does not fail everybody joined on the same key; producers are
// expected to bound themselves with timeouts. Failed computations are evicted.
func Memoize[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return producer(ctx)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := c.now()
	candidate := &entry{done: make(chan struct{})}
	var current *entry
	var owner, joined bool
	c.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if loaded && old.live(now) {
			current = old
			select {
			case <-old.done:
			default:
				joined = true
			}
			return old, xsync.CancelOp
		}
		current = candidate
		owner = true
		return candidate, xsync.UpdateOp
	})

	switch {
	case owner:
		c.observe(LookupMiss)
		go c.produce(context.WithoutCancel(ctx), key, ttl, current, func(ctx context.Context) (any, error) {
			return producer(ctx)
		})
	case joined:
		c.observe(LookupJoin)
	default:
		c.observe(LookupHit)
	}

	select {
	case <-current.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if err, ok := current.value.(producerError); ok {
		return zero, err.err
	}
	value, ok := current.value.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %q holds %T", key, current.value)
	}
	return value, nil
}

type producerError struct {
	err error
}

func (c *Cache) produce(ctx context.Context, key string, ttl time.Duration, e *entry, producer func(context.Context) (any, error)) {
	var (
		value any
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cache producer for %q panicked: %v", key, r)
			}
		}()
		value, err = producer(ctx)
	}()

	if err != nil {
		e.value = producerError{err: err}
		c.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
			if loaded && old == e {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		close(e.done)
		return
	}

	e.value = value
	e.expires = c.now().Add(ttl)
	close(e.done)
}

// Clear removes one key, or every key when none is given.
func (c *Cache) Clear(keys ...string) {
	if len(keys) == 0 {
		c.entries.Clear()
		return
	}
	for _, key := range keys {
		c.entries.Delete(key)
	}
}

// Len returns the number of stored entries, including expired ones not yet replaced.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Keys lists the stored keys.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, c.entries.Size())
	c.entries.Range(func(key string, _ *entry) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func (c *Cache) observe(outcome string) {
	if c.observer != nil {
		c.observer(outcome)
	}
}
