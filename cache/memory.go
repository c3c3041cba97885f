package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ZaguanLabs/tlcache"
)

// Memory is a thread-safe in-process cache with the same upsert semantics as
// the relational store. Entries never expire.
type Memory struct {
	mu      sync.RWMutex
	entries map[tlcache.CacheKey]tlcache.Entry
	order   []tlcache.CacheKey
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[tlcache.CacheKey]tlcache.Entry),
		now:     time.Now,
	}
}

// BatchGet implements tlcache.TranslationCache.
func (c *Memory) BatchGet(ctx context.Context, keys []tlcache.CacheKey) (map[string]tlcache.Record, error) {
	found := make(map[string]tlcache.Record)
	if len(keys) == 0 {
		return found, nil
	}
	if _, err := checkScope(keys); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, k := range keys {
		if e, ok := c.entries[k]; ok {
			found[k.SourceText] = e.Record.Clone()
		}
	}
	return found, nil
}

// BatchPut implements tlcache.TranslationCache. A present key has its record
// replaced whole and keeps its creation time.
func (c *Memory) BatchPut(ctx context.Context, entries []tlcache.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	now := c.now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		e.Record = e.Record.Clone()
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		if old, ok := c.entries[e.Key]; ok {
			e.CreatedAt = old.CreatedAt
		} else {
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			c.order = append(c.order, e.Key)
		}
		c.entries[e.Key] = e
	}
	return nil
}

// Each calls fn for every entry in insertion order.
func (c *Memory) Each(ctx context.Context, fn func(tlcache.Entry) error) error {
	c.mu.RLock()
	snapshot := make([]tlcache.Entry, 0, len(c.order))
	for _, k := range c.order {
		e := c.entries[k]
		e.Record = e.Record.Clone()
		snapshot = append(snapshot, e)
	}
	c.mu.RUnlock()

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries in the cache.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries from the cache.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[tlcache.CacheKey]tlcache.Entry)
	c.order = nil
}

var (
	_ tlcache.TranslationCache = (*Memory)(nil)
	_ Source                   = (*Memory)(nil)
)
