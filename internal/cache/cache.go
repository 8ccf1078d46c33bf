// Package cache keeps recently read listing documents in memory.
package cache

import (
	"sync"
	"time"

	"github.com/livetemplate/listingkit"
)

// Entry is one cached document.
type Entry struct {
	Doc       *listingkit.Document
	ExpiresAt time.Time
	StaleAt   time.Time // After StaleAt the document is served but should be refreshed
}

// IsExpired returns true if the entry has expired at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// IsStale returns true if the entry is stale but not expired at now.
func (e *Entry) IsStale(now time.Time) bool {
	return now.After(e.StaleAt) && now.Before(e.ExpiresAt)
}

// Cache is the interface the store layer caches documents through.
type Cache interface {
	// Get returns (doc, found, stale). A stale document is still usable.
	Get(key string) (*listingkit.Document, bool, bool)
	Set(key string, doc *listingkit.Document, ttl time.Duration)
	// SetWithStale stores doc, stale after staleAfter and gone after expireAfter.
	SetWithStale(key string, doc *listingkit.Document, staleAfter, expireAfter time.Duration)
	Invalidate(key string)
	InvalidateAll()
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   int64
	Misses int64
	Stale  int64
}

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) { c.now = now }
}

// WithMaxEntries bounds the cache; the entry closest to expiry is evicted
// first. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *MemoryCache) { c.maxEntries = n }
}

// WithCleanupInterval sets how often expired entries are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *MemoryCache) { c.cleanupInterval = d }
}

// MemoryCache is an in-memory Cache with TTL support. Documents are
// cloned on the way in and out so callers never share maps.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	stats      Stats
	now        func() time.Time
	maxEntries int

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryCache creates a cache and starts its cleanup goroutine. Call
// Stop to release it.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		entries:         make(map[string]*Entry),
		now:             time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cleanupLoop()
	return c
}

// Get returns (doc, found, stale).
func (c *MemoryCache) Get(key string) (*listingkit.Document, bool, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return nil, false, false
	}
	if entry.IsExpired(now) {
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false, false
	}

	stale := entry.IsStale(now)
	if stale {
		c.stats.Stale++
	}
	c.stats.Hits++
	return entry.Doc.Clone(), true, stale
}

// Set stores doc with the given TTL.
func (c *MemoryCache) Set(key string, doc *listingkit.Document, ttl time.Duration) {
	c.SetWithStale(key, doc, ttl, ttl)
}

// SetWithStale stores doc with separate stale and expire times.
func (c *MemoryCache) SetWithStale(key string, doc *listingkit.Document, staleAfter, expireAfter time.Duration) {
	if doc == nil {
		return
	}
	now := c.now()
	entry := &Entry{
		Doc:       doc.Clone(),
		StaleAt:   now.Add(staleAfter),
		ExpiresAt: now.Add(expireAfter),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry
}

func (c *MemoryCache) evictLocked() {
	var victim string
	var soonest time.Time
	for key, entry := range c.entries {
		if victim == "" || entry.ExpiresAt.Before(soonest) {
			victim, soonest = key, entry.ExpiresAt
		}
	}
	delete(c.entries, victim)
}

// Invalidate removes an entry.
func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll removes every entry.
func (c *MemoryCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// Stats returns the lookup counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) cleanup() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
