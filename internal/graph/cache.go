// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

// Cache is an LRU query-result cache with TTL expiry. Read queries consult
// it; every write clears it, since any write may invalidate any cached
// subgraph.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	ll         *list.List
	items      map[uint64]*list.Element

	hits      int64
	misses    int64
	evictions int64

	// now is swappable for expiry tests.
	now func() time.Time
}

type cacheEntry struct {
	key      uint64
	value    *Subgraph
	storedAt time.Time
}

// NewCache returns a cache holding up to maxEntries results for ttl each.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		ll:         list.New(),
		items:      map[uint64]*list.Element{},
		now:        time.Now,
	}
}

// Key hashes a query and its parameters into a cache key. Whitespace in the
// query text is collapsed so formatting differences hit the same entry, and
// parameters are folded in sorted order for stability.
func (c *Cache) Key(query string, params map[string]any) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(strings.Fields(query), " ")))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%v", k, params[k])
	}
	return h.Sum64()
}

// Get returns the cached subgraph for key, if present and unexpired.
func (c *Cache) Get(key uint64) (*Subgraph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.ll.Remove(el)
		delete(c.items, key)
		c.misses++
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.hits++

	// Hand out fresh slices so a caller appending to or reordering the
	// result cannot corrupt later hits.
	out := *entry.value
	out.Entities = append([]types.Entity(nil), entry.value.Entities...)
	out.Relationships = append([]types.Relationship(nil), entry.value.Relationships...)
	return &out, true
}

// Set stores a subgraph under key, evicting the least recently used entry
// when full.
func (c *Cache) Set(key uint64, value *Subgraph) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.storedAt = c.now()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, value: value, storedAt: c.now()})
	c.items[key] = el

	for c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
}

// Clear drops every entry. Called after any write.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = map[uint64]*list.Element{}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   c.ll.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
