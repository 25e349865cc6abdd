package ephemeris

import (
	"sync"
	"time"
)

// Cache defaults.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 256
)

type cacheEntry struct {
	series    Series
	fetchedAt time.Time
}

// Cache keeps the most recent series per key until it is older than the TTL.
// Refetched series overwrite their entry. When the cache is full the
// oldest-fetched entry is evicted.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	entries    map[Key]cacheEntry
}

// NewCache creates a cache. A nil clock uses time.Now; non-positive ttl or
// maxEntries select the defaults.
func NewCache(ttl time.Duration, maxEntries int, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        now,
		entries:    make(map[Key]cacheEntry),
	}
}

// Get returns the series for k if it was stored less than TTL ago.
func (c *Cache) Get(k Key) (Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.series, true
}

// Put stores s under k, stamped with the current clock time.
func (c *Cache) Put(k Key, s Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[k] = cacheEntry{series: s, fetchedAt: c.now()}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]cacheEntry)
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	var (
		oldestKey Key
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.fetchedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.fetchedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
