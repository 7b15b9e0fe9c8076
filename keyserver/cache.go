package keyserver

import (
	"sync"
	"time"

	"github.com/nocdem/dna-messenger/identity"
)

// cacheTTL and staleCeiling are the 7-day/30-day windows from spec §4.5.
const (
	cacheTTL    = 7 * 24 * time.Hour
	staleCeiling = 30 * 24 * time.Hour
)

type cacheEntry struct {
	record   identity.Record
	fetchedAt time.Time
}

func (e cacheEntry) fresh(now time.Time) bool {
	return now.Sub(e.fetchedAt) < cacheTTL
}

func (e cacheEntry) withinStaleCeiling(now time.Time) bool {
	return now.Sub(e.fetchedAt) < staleCeiling
}

// cache is a TTL-bounded local cache keyed by fingerprint, with a longer
// stale-fallback window for DHT outages, per spec §4.5.
type cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func newCache(now func() time.Time) *cache {
	if now == nil {
		now = time.Now
	}
	return &cache{entries: make(map[string]cacheEntry), now: now}
}

func (c *cache) get(fingerprint string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fingerprint]
	return e, ok
}

func (c *cache) put(fingerprint string, record identity.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = cacheEntry{record: record, fetchedAt: c.now()}
}
