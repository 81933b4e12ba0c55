package remote

import (
	"sync"
	"time"
)

type readKey struct {
	unit     uint8
	address  uint16
	quantity uint16
}

type cacheEntry struct {
	words   []uint16
	expires time.Time
}

// ReadCache memoizes register reads with a bounded size and per-entry TTL.
// It is owned by the caller and injected per run; nothing in the core keeps
// process-wide cache state.
type ReadCache struct {
	mu      sync.Mutex
	entries map[readKey]cacheEntry
	order   []readKey
	max     int
	ttl     time.Duration
	now     func() time.Time
}

// NewReadCache builds a cache holding at most max entries for ttl each.
func NewReadCache(max int, ttl time.Duration) *ReadCache {
	if max <= 0 {
		max = 64
	}
	return &ReadCache{
		entries: make(map[readKey]cacheEntry, max),
		max:     max,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ReadCache) get(key readKey) ([]uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	words := make([]uint16, len(entry.words))
	copy(words, entry.words)
	return words, true
}

func (c *ReadCache) put(key readKey, words []uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.max && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	stored := make([]uint16, len(words))
	copy(stored, words)
	c.entries[key] = cacheEntry{words: stored, expires: c.now().Add(c.ttl)}
}

type cachedReader struct {
	inner RegisterReader
	cache *ReadCache
}

// WithCache wraps a reader so repeated reads of the same block within the
// cache TTL are answered locally. Identity registers are static per device,
// which makes them safe to cache across live diagnostic passes.
func WithCache(reader RegisterReader, cache *ReadCache) RegisterReader {
	if cache == nil {
		return reader
	}
	return &cachedReader{inner: reader, cache: cache}
}

func (r *cachedReader) ReadRegisters(unit uint8, address, quantity uint16) ([]uint16, error) {
	key := readKey{unit: unit, address: address, quantity: quantity}
	if words, ok := r.cache.get(key); ok {
		return words, nil
	}
	words, err := r.inner.ReadRegisters(unit, address, quantity)
	if err != nil {
		return nil, err
	}
	r.cache.put(key, words)
	return words, nil
}
