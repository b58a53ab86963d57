// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianResearch/services/research/export"
)

// Per-item byte estimates for the memory ceiling. Rough by intent:
// the ceiling bounds growth, it does not account.
const (
	entryOverheadBytes = 256
	nodeEstimateBytes  = 160
	edgeEstimateBytes  = 112
)

// Cache memoizes computed layouts keyed by view signature.
//
// # Description
//
// Two independent ceilings bound the cache: entry count and estimated
// memory (a fixed per-node/per-edge byte estimate recorded at insert).
// Eviction removes oldest-inserted entries first until both ceilings
// hold again; a hit does not refresh an entry's age. Concurrent misses
// on the same signature collapse into a single computation.
//
// # Thread Safety
//
// Safe for concurrent use.
type Cache struct {
	engine *Engine

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List
	flight  singleflight.Group

	maxEntries int64
	maxBytes   int64
	estBytes   int64

	hits      int64
	misses    int64
	evictions int64
}

// cacheEntry is one memoized layout.
type cacheEntry struct {
	key     string
	layout  *Layout
	bytes   int64
	element *list.Element
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	// MaxEntries is the entry-count ceiling.
	// Default: 128
	MaxEntries int

	// MaxBytes is the estimated-memory ceiling.
	// Default: 8 MiB
	MaxBytes int64
}

// DefaultCacheOptions returns sensible defaults.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		MaxEntries: 128,
		MaxBytes:   8 << 20,
	}
}

// CacheOption is a functional option for configuring a Cache.
type CacheOption func(*CacheOptions)

// WithMaxEntries sets the entry-count ceiling.
func WithMaxEntries(n int) CacheOption {
	return func(o *CacheOptions) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithMaxBytes sets the estimated-memory ceiling.
func WithMaxBytes(n int64) CacheOption {
	return func(o *CacheOptions) {
		if n > 0 {
			o.MaxBytes = n
		}
	}
}

// NewCache creates a layout cache around an engine. A nil engine gets
// the default geometry.
func NewCache(engine *Engine, opts ...CacheOption) *Cache {
	if engine == nil {
		engine = NewEngine()
	}
	options := DefaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Cache{
		engine:     engine,
		entries:    make(map[string]*cacheEntry),
		order:      list.New(),
		maxEntries: int64(options.MaxEntries),
		maxBytes:   options.MaxBytes,
	}
}

// Layout returns the memoized layout for the view, computing it on a
// miss.
//
// # Description
//
// Structurally identical views (same signature) return the identical
// *Layout pointer until the entry is evicted. Callers must treat the
// result as immutable.
//
// # Inputs
//
//   - ctx: Context for metric recording. The computation itself is
//     synchronous and does not observe cancellation.
//   - nodes, edges: The view to lay out.
//
// # Outputs
//
//   - *Layout: The cached or freshly computed layout.
//   - error: Non-nil only when the shared computation fails.
func (c *Cache) Layout(ctx context.Context, nodes []export.ViewNode, edges []export.ViewEdge) (*Layout, error) {
	key := Signature(nodes, edges)

	if layout, ok := c.get(key); ok {
		atomic.AddInt64(&c.hits, 1)
		recordCacheHit(ctx)
		return layout, nil
	}

	result, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// A concurrent miss may have filled the entry already.
		if layout, ok := c.get(key); ok {
			return layout, nil
		}

		layout := c.engine.Compute(nodes, edges)
		c.put(ctx, key, layout, len(nodes), len(edges))
		atomic.AddInt64(&c.misses, 1)
		recordCacheMiss(ctx)
		return layout, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Layout), nil
}

// Lookup returns the memoized layout without computing on a miss.
func (c *Cache) Lookup(nodes []export.ViewNode, edges []export.ViewEdge) (*Layout, bool) {
	return c.get(Signature(nodes, edges))
}

// get fetches an entry. Unlike an LRU, age is insertion order; reads
// do not touch the eviction order.
func (c *Cache) get(key string) (*Layout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.layout, true
}

// put inserts a computed layout and evicts until both ceilings hold.
func (c *Cache) put(ctx context.Context, key string, layout *Layout, nodeCount, edgeCount int) {
	bytes := int64(entryOverheadBytes + nodeCount*nodeEstimateBytes + edgeCount*edgeEstimateBytes)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return
	}

	entry := &cacheEntry{key: key, layout: layout, bytes: bytes}
	entry.element = c.order.PushBack(key)
	c.entries[key] = entry
	c.estBytes += bytes

	c.evictLocked(ctx)
}

// evictLocked drops oldest-inserted entries until both ceilings hold.
// Must hold mu.
func (c *Cache) evictLocked(ctx context.Context) {
	maxEntries := atomic.LoadInt64(&c.maxEntries)
	maxBytes := atomic.LoadInt64(&c.maxBytes)

	for int64(len(c.entries)) > maxEntries || c.estBytes > maxBytes {
		oldest := c.order.Front()
		if oldest == nil {
			return
		}
		key := oldest.Value.(string)
		entry := c.entries[key]
		c.order.Remove(oldest)
		delete(c.entries, key)
		if entry != nil {
			c.estBytes -= entry.bytes
		}
		atomic.AddInt64(&c.evictions, 1)
		recordCacheEviction(ctx)
	}
}

// SetLimits replaces both ceilings and evicts immediately to fit.
// Non-positive values keep the current ceiling. Used by config hot
// reload.
func (c *Cache) SetLimits(maxEntries int, maxBytes int64) {
	if maxEntries > 0 {
		atomic.StoreInt64(&c.maxEntries, int64(maxEntries))
	}
	if maxBytes > 0 {
		atomic.StoreInt64(&c.maxBytes, maxBytes)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(context.Background())
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
	c.estBytes = 0
}

// Len returns the number of cached layouts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheStats describes cache behavior since creation.
type CacheStats struct {
	Entries        int
	EstimatedBytes int64
	Hits           int64
	Misses         int64
	Evictions      int64
	MaxEntries     int
	MaxBytes       int64
}

// HitRate returns the hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:        len(c.entries),
		EstimatedBytes: c.estBytes,
		Hits:           atomic.LoadInt64(&c.hits),
		Misses:         atomic.LoadInt64(&c.misses),
		Evictions:      atomic.LoadInt64(&c.evictions),
		MaxEntries:     int(atomic.LoadInt64(&c.maxEntries)),
		MaxBytes:       atomic.LoadInt64(&c.maxBytes),
	}
}
