package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/reviewscope/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.ReviewsResponse
	createdAt time.Time
}

// Cache is an in-memory time-to-live cache for review responses.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries responses for ttl each.
// A background goroutine evicts expired entries until Stop is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval(ttl))
	return c
}

// Key identifies a query: subject and location (trimmed, case-insensitive),
// result cap, and the selected source names in any order.
func Key(q models.ScrapeQuery, sources []string) string {
	srcs := append([]string(nil), sources...)
	sort.Strings(srcs)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(q.SubjectName))))
	h.Write([]byte("|"))
	h.Write([]byte(strings.ToLower(strings.TrimSpace(q.LocationHint))))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(q.MaxResults)))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(srcs, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key if it is younger than the TTL.
func (c *Cache) Get(key string) (*models.ReviewsResponse, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.response, true
}

// Set stores a response. At capacity, the oldest entry is evicted.
func (c *Cache) Set(key string, resp *models.ReviewsResponse) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: c.now(),
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop ends the background cleanup.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 5 * time.Minute
	}
	if d := ttl / 4; d > time.Second {
		return d
	}
	return time.Second
}
