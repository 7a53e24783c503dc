package cache

import (
	"sync"
	"time"

	"calmap/internal/domain"
)

type zoneEntry struct {
	cachedAt time.Time
	features []domain.Feature
}

// ZoneCache holds recent zone results in memory for the lifetime of the
// process. Entries expire by TTL only; the zone set is small and static,
// so there is no eviction beyond that.
type ZoneCache struct {
	mu      sync.RWMutex
	entries map[string]zoneEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewZoneCache(ttl time.Duration) *ZoneCache {
	return &ZoneCache{
		entries: make(map[string]zoneEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ZoneCache) Get(key string) ([]domain.Feature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.cachedAt) > c.ttl {
		return nil, false
	}
	return entry.features, true
}

func (c *ZoneCache) Set(key string, features []domain.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = zoneEntry{cachedAt: c.now(), features: features}
}

func (c *ZoneCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
