// Package cache provides a read-through memo whose entries expire after a fixed TTL.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces the value for key on a miss.
type LoadFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Memo caches successful loads per key for ttl. Failed loads are never stored.
// Concurrent misses for one key share a single load. A zero ttl disables caching.
type Memo[K comparable, V any] struct {
	ttl  time.Duration
	load LoadFunc[K, V]
	now  func() time.Time

	mu      sync.Mutex
	entries map[K]entry[V]
	group   singleflight.Group
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New[K comparable, V any](ttl time.Duration, load LoadFunc[K, V], opts ...Option) *Memo[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memo[K, V]{
		ttl:     ttl,
		load:    load,
		now:     o.now,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the cached value for key while it is younger than the TTL,
// otherwise loads, stores and returns a fresh one. A shared load is detached
// from each caller's cancellation; a cancelled caller stops waiting without
// failing the others.
func (m *Memo[K, V]) Get(ctx context.Context, key K) (V, error) {
	if m.ttl <= 0 {
		return m.load(ctx, key)
	}
	if v, ok := m.lookup(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(fmt.Sprint(key), func() (any, error) {
		if v, ok := m.lookup(key); ok {
			return v, nil
		}
		v, err := m.load(loadCtx, key)
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		m.entries[key] = entry[V]{value: v, storedAt: m.now()}
		m.mu.Unlock()
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (m *Memo[K, V]) lookup(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if m.now().Sub(e.storedAt) >= m.ttl {
		delete(m.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate drops key so the next Get reloads it.
func (m *Memo[K, V]) Invalidate(key K) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Purge drops every entry.
func (m *Memo[K, V]) Purge() {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
