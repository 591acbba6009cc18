package bus

import (
	"container/list"
	"sync"
	"time"
)

// DedupeCache suppresses repeat deliveries of the same message id. The check
// is a serialized test-and-set, so a duplicate racing the first delivery can
// never be admitted twice. Entries expire after a TTL and the cache holds at
// most maxEntries ids (oldest evicted first).
type DedupeCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = oldest
}

type dedupeEntry struct {
	id   string
	seen time.Time
}

// NewDedupeCache creates a dedupe cache with the given TTL and size cap.
func NewDedupeCache(ttl time.Duration, maxEntries int) *DedupeCache {
	return &DedupeCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Seen records id and reports whether it was already present (and unexpired).
func (c *DedupeCache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.prune(now)

	if _, ok := c.entries[id]; ok {
		return true
	}

	for len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[id] = c.order.PushBack(&dedupeEntry{id: id, seen: now})
	return false
}

// Len returns the number of tracked ids.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DedupeCache) prune(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		e := front.Value.(*dedupeEntry)
		if now.Sub(e.seen) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, e.id)
	}
}

func (c *DedupeCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	e := front.Value.(*dedupeEntry)
	c.order.Remove(front)
	delete(c.entries, e.id)
}
