package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores serialized metric results keyed by tenant, range and metric
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// item represents a cached value with expiration
type item struct {
	data      []byte
	expiresAt time.Time
}

// Memory is a process-local Cache
type Memory struct {
	items map[string]*item
	mutex sync.RWMutex
	now   func() time.Time
}

// NewMemory creates a new in-memory cache
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]*item),
		now:   time.Now,
	}
}

// Get retrieves a value; expired entries are evicted on read
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mutex.RLock()
	it, exists := c.items[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if !c.now().Before(it.expiresAt) {
		c.mutex.Lock()
		// Only evict if nobody replaced it in between
		if current, ok := c.items[key]; ok && current == it {
			delete(c.items, key)
		}
		c.mutex.Unlock()
		return nil, false, nil
	}

	return it.data, true, nil
}

// Set stores a value with TTL. A non-positive TTL is a no-op.
// Entries that have already expired are dropped on every write.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	c.evictExpired(now)
	c.items[key] = &item{
		data:      value,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// evictExpired must be called with the write lock held
func (c *Memory) evictExpired(now time.Time) {
	for key, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, key)
		}
	}
}

// Delete removes a value from the cache
func (c *Memory) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *Memory) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Clear removes all items from the cache
func (c *Memory) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]*item)
}
