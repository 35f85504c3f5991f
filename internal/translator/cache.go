package translator

import (
	"container/list"
	"sync"
)

// Cache is a bounded source→translation map evicting in insertion order.
// Every entry belongs to one generation; Clear starts a new generation and
// Put refuses values computed for an older one.
type Cache struct {
	mu         sync.Mutex
	capacity   int
	entries    map[string]*list.Element
	order      *list.List
	generation uint64

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key   string
	value string
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Size       int     `json:"size"`
	Capacity   int     `json:"capacity"`
	Generation uint64  `json:"generation"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	HitRatio   float64 `json:"hit_ratio"`
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.hits++
		return elem.Value.(*cacheEntry).value, true
	}
	c.misses++
	return "", false
}

// Peek is Get without touching the hit and miss counters.
func (c *Cache) Peek(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		return elem.Value.(*cacheEntry).value, true
	}
	return "", false
}

// Put stores value for key if gen is still the current generation.
// Replacing an existing key keeps its original insertion position.
func (c *Cache) Put(gen uint64, key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).value = value
		return true
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, value: value})
	return true
}

// Clear drops every entry and returns the new generation.
func (c *Cache) Clear() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.generation++
	return c.generation
}

func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the cached source texts, oldest first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*cacheEntry).key)
	}
	return keys
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Size:       c.order.Len(),
		Capacity:   c.capacity,
		Generation: c.generation,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRatio = float64(c.hits) / float64(total)
	}
	return s
}
