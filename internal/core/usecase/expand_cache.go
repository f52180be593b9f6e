package usecase

import (
	"sync"
	"time"
)

type expansionEntry struct {
	expanded string
	storedAt time.Time
}

// ExpansionCache is a bounded TTL cache for query expansions, owned by the
// retrieval service instance rather than process-wide so tests and tenants
// can isolate it. Entries are immutable once written; concurrent requests
// racing on the same key at worst duplicate one generation call.
type ExpansionCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]expansionEntry
	order    []string

	hits   uint64
	misses uint64

	now func() time.Time
}

func NewExpansionCache(ttl time.Duration, capacity int) *ExpansionCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if capacity <= 0 {
		capacity = 200
	}
	return &ExpansionCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]expansionEntry, capacity),
		order:    make([]string, 0, capacity),
		now:      time.Now,
	}
}

func (c *ExpansionCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.removeLocked(key)
		c.misses++
		return "", false
	}
	c.hits++
	return entry.expanded, true
}

func (c *ExpansionCache) Put(key, expanded string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = expansionEntry{expanded: expanded, storedAt: c.now()}
		return
	}

	// Insertion-order oldest eviction keeps the map bounded.
	if len(c.entries) >= c.capacity && len(c.order) > 0 {
		c.removeLocked(c.order[0])
	}

	c.entries[key] = expansionEntry{expanded: expanded, storedAt: c.now()}
	c.order = append(c.order, key)
}

func (c *ExpansionCache) Stats() (hits, misses uint64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}

func (c *ExpansionCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
