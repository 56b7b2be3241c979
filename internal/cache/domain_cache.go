package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/teresa-solution/tenant-access-service/internal/model"
	"github.com/teresa-solution/tenant-access-service/internal/monitoring"
)

// Entry is a cached trust decision for a single domain.
type Entry struct {
	Tenant        *model.Tenant
	MatchedCustom bool
	insertedAt    time.Time
}

// DomainCache maps request domains to resolved tenants. Entries expire after
// a TTL and the cache holds at most maxEntries, evicting the single oldest
// entry when the cap is exceeded. All methods are safe for concurrent use.
//
// The cache is constructed explicitly and injected into the resolver; it owns
// no goroutines and Close is not needed.
type DomainCache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a DomainCache with the given TTL and entry cap.
func New(ttl time.Duration, maxEntries int) *DomainCache {
	return &DomainCache{
		entries:    make(map[string]Entry, maxEntries),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached entry for a domain. Entries older than the TTL are
// never served; they are dropped and reported as a miss.
func (c *DomainCache) Get(domain string) (Entry, bool) {
	key := normalize(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return Entry{}, false
	}
	return entry, true
}

// Put stores a resolved tenant for a domain, evicting the oldest entry if the
// cap would be exceeded.
func (c *DomainCache) Put(domain string, tenant *model.Tenant, matchedCustom bool) {
	key := normalize(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = Entry{
		Tenant:        tenant,
		MatchedCustom: matchedCustom,
		insertedAt:    c.now(),
	}
}

// Invalidate removes the entries for the given domains, if present.
func (c *DomainCache) Invalidate(domains ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range domains {
		delete(c.entries, normalize(d))
	}
}

// InvalidateAll drops every entry.
func (c *DomainCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry, c.maxEntries)
}

// Len returns the current number of entries, expired or not.
func (c *DomainCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// evictOldestLocked removes the entry with the oldest insertion timestamp.
// Caller must hold c.mu.
func (c *DomainCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		monitoring.CacheEvictions.Inc()
	}
}

func normalize(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
