package api

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// RepositoryCache is a thread-safe LRU cache of per-user repository
// snapshots. Entries older than the TTL are treated as missing.
type RepositoryCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*cacheEntry
	order   []string // oldest first
}

type cacheEntry struct {
	repos    []inventory.Repository
	storedAt time.Time
}

// NewRepositoryCache creates a cache with the given maximum number of
// users. If maxSize <= 0, it defaults to 100; if ttl <= 0, to one minute.
func NewRepositoryCache(maxSize int, ttl time.Duration) *RepositoryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RepositoryCache{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// NewRepositoryCacheFromEnv creates a cache sized by REPOSITORY_CACHE_SIZE.
func NewRepositoryCacheFromEnv() *RepositoryCache {
	size := 100
	if v := os.Getenv("REPOSITORY_CACHE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return NewRepositoryCache(size, time.Minute)
}

// Get returns the cached repositories of userID.
func (c *RepositoryCache) Get(userID string) ([]inventory.Repository, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.removeLocked(userID)
		return nil, false
	}
	c.moveToEnd(userID)
	return entry.repos, true
}

// Put stores repos for userID, evicting the least recently used user if full.
func (c *RepositoryCache) Put(userID string, repos []inventory.Repository) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[userID]; ok {
		c.entries[userID] = &cacheEntry{repos: repos, storedAt: c.now()}
		c.moveToEnd(userID)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[userID] = &cacheEntry{repos: repos, storedAt: c.now()}
	c.order = append(c.order, userID)
}

// Invalidate drops userID's entry after its repositories change.
func (c *RepositoryCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(userID)
}

func (c *RepositoryCache) removeLocked(userID string) {
	if _, ok := c.entries[userID]; !ok {
		return
	}
	delete(c.entries, userID)
	for i, k := range c.order {
		if k == userID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *RepositoryCache) moveToEnd(userID string) {
	for i, k := range c.order {
		if k == userID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, userID)
			return
		}
	}
}
