package engine

import "sync"

// RecencyCache is a bounded set of the latest processed message id per
// thread. It short-circuits redundant fetch/resolve work within one process
// lifetime; durable bot-reply records remain the correctness mechanism.
// Oldest entries are evicted first once the capacity is exceeded.
// Safe for concurrent use.
type RecencyCache struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string // insertion order, oldest first
}

// NewRecencyCache creates a cache holding at most capacity ids.
func NewRecencyCache(capacity int) *RecencyCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RecencyCache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Contains reports whether id was recently processed.
func (c *RecencyCache) Contains(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// Add records id, evicting the oldest entries beyond capacity.
// Empty ids and duplicates are ignored.
func (c *RecencyCache) Add(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return
	}
	c.seen[id] = struct{}{}
	c.order = append(c.order, id)

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
}

// Len returns the number of cached ids.
func (c *RecencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
