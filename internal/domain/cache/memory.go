package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the in-memory cache.
const DefaultMaxEntries = 10000

// Store keeps encoded search results until their TTL elapses. Store
// failures are logged and reported as misses; they never fail a search.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)
	Close() error
}

// cacheEntry holds the cached payload and its expiration time.
type cacheEntry struct {
	data   []byte
	expiry time.Time
}

// MemoryCache provides thread-safe in-memory caching for search results.
type MemoryCache struct {
	entries         map[string]cacheEntry
	mu              sync.RWMutex
	maxSize         int
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewMemoryCache creates a new cache and starts a background goroutine to
// evict expired entries. maxSize <= 0 selects DefaultMaxEntries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	c := &MemoryCache{
		entries:         make(map[string]cacheEntry),
		maxSize:         maxSize,
		cleanupInterval: 1 * time.Hour,
		stop:            make(chan struct{}),
	}
	go c.startCleanup()
	return c
}

// Get retrieves cached data for the given key, if it exists and has not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[key]
	if found && time.Now().Before(entry.expiry) {
		return entry.data, true
	}
	return nil, false
}

// Put stores data in the cache with the given TTL.
// If the cache exceeds maxSize, one entry is evicted.
func (c *MemoryCache) Put(_ context.Context, key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		data:   data,
		expiry: time.Now().Add(ttl),
	}

	// Size limit protection
	if len(c.entries) > c.maxSize {
		// Evict a random entry other than the one just stored
		for k := range c.entries {
			if k == key {
				continue
			}
			delete(c.entries, k)
			break
		}
	}
}

// EvictExpired removes all expired entries from the cache.
func (c *MemoryCache) EvictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	initialSize := len(c.entries)
	now := time.Now()
	for k, v := range c.entries {
		if now.After(v.expiry) {
			delete(c.entries, k)
		}
	}
	evictedCount := initialSize - len(c.entries)
	if evictedCount > 0 {
		slog.Debug("Evicted expired cache entries", "count", evictedCount)
	}
}

// Len returns the number of entries in the cache.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// startCleanup periodically removes expired entries.
func (c *MemoryCache) startCleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.EvictExpired()
		case <-c.stop:
			return
		}
	}
}

// Nop is a Store that never retains anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Nop) Put(context.Context, string, []byte, time.Duration) {}

func (Nop) Close() error { return nil }
