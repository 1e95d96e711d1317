// Package cache provides the in-process response cache used by the chat
// pipeline. It maps a deterministic request key to the assistant reply that
// was produced for it, bounded in size with oldest-first eviction.
//
// Features:
//   - Last write wins for a key; rewriting a key keeps its insertion position
//   - Batch eviction of the earliest inserted entries once the ceiling is passed
//   - Safe for concurrent use
package cache

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// ResponseCache is a bounded FIFO map from cache key to assistant reply.
// Eviction ignores access recency: the entries inserted first leave first.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]string
	order      []string // insertion order of live keys
	maxEntries int
	evictBatch int
}

// NewResponseCache creates a cache holding at most maxEntries replies. When an
// insertion pushes the size past maxEntries, the evictBatch oldest entries are
// dropped.
//
// Example:
//
//	responses := cache.NewResponseCache(100, 20)
//	responses.Put(cache.ResponseKey("gpt-4", "Hello", ""), "Hi there!")
func NewResponseCache(maxEntries, evictBatch int) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if evictBatch <= 0 || evictBatch > maxEntries {
		evictBatch = 1
	}
	return &ResponseCache{
		entries:    make(map[string]string, maxEntries+1),
		order:      make([]string, 0, maxEntries+1),
		maxEntries: maxEntries,
		evictBatch: evictBatch,
	}
}

// Get returns the cached reply for key, or ErrCacheMiss.
func (c *ResponseCache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return value, nil
}

// Put stores value under key and evicts if the cache grew past its ceiling.
func (c *ResponseCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = value

	if len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

// Len returns the number of cached replies.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest drops the evictBatch earliest inserted keys. Caller holds mu.
func (c *ResponseCache) evictOldest() {
	n := c.evictBatch
	if n > len(c.order) {
		n = len(c.order)
	}
	for _, key := range c.order[:n] {
		delete(c.entries, key)
	}
	// Copy so the backing array does not keep growing at the front.
	c.order = append(make([]string, 0, c.maxEntries+1), c.order[n:]...)

	log.Debug().
		Int("evicted", n).
		Int("remaining", len(c.entries)).
		Msg("Response cache evicted oldest entries")
}
