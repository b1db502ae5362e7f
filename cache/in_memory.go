// Package cache provides core.Cache implementations: a process-local
// in-memory store for tests and single-instance deployments, and a Redis
// backed store for multi-instance scale-out.
package cache

import (
	"context"
	"sync"
	"time"
)

// InMemory is a volatile core.Cache implementation storing values in a
// process local map. It is safe for concurrent access and best suited for
// tests or single-instance deployments. Get refreshes the entry's sliding
// expiration; an optional janitor goroutine removes expired entries.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	done    chan struct{}
	once    sync.Once
}

type entry struct {
	value     []byte
	ttl       time.Duration
	expiresAt time.Time
}

// NewInMemory constructs an empty in-memory cache with a janitor sweeping at
// the given interval. interval <= 0 disables the janitor; expired entries
// are then only collected lazily on access.
func NewInMemory(interval time.Duration) *InMemory {
	c := &InMemory{entries: make(map[string]*entry), done: make(chan struct{})}
	if interval > 0 {
		go c.janitor(interval)
	}
	return c
}

// Set stores a copy of value under key with a sliding ttl. ttl <= 0 stores
// the entry without expiration.
func (c *InMemory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	e := &entry{value: cp, ttl: ttl}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Get returns a copy of the stored value and refreshes its sliding
// expiration. The boolean reports presence; expired entries read as absent.
func (c *InMemory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.ttl > 0 {
		if time.Now().After(e.expiresAt) {
			delete(c.entries, key)
			return nil, false, nil
		}
		e.expiresAt = time.Now().Add(e.ttl)
	}

	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, true, nil
}

// Delete removes the entry if present.
func (c *InMemory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Close stops the janitor goroutine.
func (c *InMemory) Close() {
	c.once.Do(func() { close(c.done) })
}

// Len reports the number of live (non-expired) entries.
func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, e := range c.entries {
		if e.ttl <= 0 || now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *InMemory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.entries {
				if e.ttl > 0 && now.After(e.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
