// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Path cache defaults.
const (
	// DefaultCacheTTL bounds how stale a cached path result can be.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheSize is the maximum number of cached path results.
	DefaultCacheSize = 256
)

// cacheEntry is one cached shortest-path result. Value may be nil: an
// unreachable pair is a valid, cacheable answer.
type cacheEntry struct {
	key       string
	value     *Path
	expiresAt time.Time

	// version is the store version at compute time, used only when
	// invalidate-on-write is enabled.
	version int64

	elem *list.Element
}

// pathCache is a TTL-bounded LRU for shortest-path results.
//
// Thread Safety: pathCache itself is not safe for concurrent use; the
// engine always goes through guardedCache.
type pathCache struct {
	entries map[string]*cacheEntry
	order   *list.List // front = most recently used
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newPathCache(ttl time.Duration, maxSize int, now func() time.Time) *pathCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if now == nil {
		now = time.Now
	}
	return &pathCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
	}
}

// get returns the cached value for key. The second return reports whether
// a live entry existed; the value itself may be nil (negative result).
// Expired entries and entries older than minVersion are dropped.
func (c *pathCache) get(ctx context.Context, key string, minVersion int64) (*Path, bool) {
	entry, ok := c.entries[key]
	if !ok {
		recordCacheMiss(ctx)
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.remove(entry)
		recordCacheEviction(ctx, "expired")
		recordCacheMiss(ctx)
		return nil, false
	}
	if minVersion > 0 && entry.version != minVersion {
		c.remove(entry)
		recordCacheEviction(ctx, "stale")
		recordCacheMiss(ctx)
		return nil, false
	}
	c.order.MoveToFront(entry.elem)
	recordCacheHit(ctx)
	return entry.value, true
}

// put stores a result, evicting the least recently used entry when full.
func (c *pathCache) put(ctx context.Context, key string, value *Path, version int64) {
	if entry, ok := c.entries[key]; ok {
		entry.value = value
		entry.version = version
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(entry.elem)
		return
	}
	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*cacheEntry))
		recordCacheEviction(ctx, "lru")
	}
	entry := &cacheEntry{
		key:       key,
		value:     value,
		version:   version,
		expiresAt: c.now().Add(c.ttl),
	}
	entry.elem = c.order.PushFront(entry)
	c.entries[key] = entry
}

func (c *pathCache) remove(entry *cacheEntry) {
	c.order.Remove(entry.elem)
	delete(c.entries, entry.key)
}

// purge drops every entry.
func (c *pathCache) purge() {
	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
}

func (c *pathCache) len() int {
	return len(c.entries)
}

// guardedCache wraps pathCache with a mutex for concurrent engine use.
type guardedCache struct {
	mu    sync.Mutex
	inner *pathCache
}

func newGuardedCache(ttl time.Duration, maxSize int, now func() time.Time) *guardedCache {
	return &guardedCache{inner: newPathCache(ttl, maxSize, now)}
}

func (g *guardedCache) get(ctx context.Context, key string, minVersion int64) (*Path, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.get(ctx, key, minVersion)
}

func (g *guardedCache) put(ctx context.Context, key string, value *Path, version int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inner.put(ctx, key, value, version)
}

func (g *guardedCache) purge() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inner.purge()
}

func (g *guardedCache) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.len()
}
