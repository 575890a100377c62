// Copyright 2026 The Loghours Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ttlcache implements an in-memory response cache with per-entry
// expiry and pattern-based bulk invalidation.
//
// Reads never return expired data: an entry whose TTL has elapsed is dropped
// on the read that discovers it. Entries that are written but never re-read
// are reclaimed by Cleanup, which is expected to run on a coarse timer (see
// RunCleaner).
//
// Time flows through the context clock, so tests drive expiry with
// testclock instead of sleeping.
package ttlcache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/logging"
)

const (
	// DefaultTTL is applied to entries stored without an explicit TTL.
	DefaultTTL = 5 * time.Minute

	// DefaultCleanupInterval is a reasonable interval for RunCleaner.
	DefaultCleanupInterval = 10 * time.Minute
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry[V]) live(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Cache is a string-keyed value store with per-entry expiry.
//
// Keys are strings (see the cachekey package for building them) so that
// whole namespaces can be invalidated by pattern. Safe for concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	entries    map[string]*entry[V]
}

// New creates an empty cache. defaultTTL <= 0 selects DefaultTTL.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache[V]{
		defaultTTL: defaultTTL,
		entries:    map[string]*entry[V]{},
	}
}

// Set stores value under key, overwriting any existing entry. ttl <= 0
// selects the cache's default TTL.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{
		value:    value,
		storedAt: clock.Now(ctx),
		ttl:      ttl,
	}
}

// Get returns the value stored under key if it is still live. An expired
// entry is dropped and reported as absent.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	now := clock.Now(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil {
		var zero V
		return zero, false
	}
	if !e.live(now) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether a live entry exists under key, dropping it if expired.
func (c *Cache[V]) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Delete removes the entry under key, if any.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Invalidate removes every entry whose key matches re and returns how many
// were removed.
func (c *Cache[V]) Invalidate(re *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many were removed. This is the bulk "clear this namespace"
// surface used by domain services after a mutation.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes everything.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*entry[V]{}
}

// Cleanup drops all expired entries and returns how many were dropped.
func (c *Cache[V]) Cleanup(ctx context.Context) int {
	now := clock.Now(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (c *Cache[V]) Len(ctx context.Context) int {
	now := clock.Now(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.live(now) {
			n++
		}
	}
	return n
}

// RunCleaner runs Cleanup every interval until ctx is done. interval <= 0
// selects DefaultCleanupInterval. Blocks; run it in its own goroutine.
func (c *Cache[V]) RunCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	for {
		if tr := <-clock.After(ctx, interval); tr.Err != nil {
			return
		}
		if n := c.Cleanup(ctx); n > 0 {
			logging.Debugf(ctx, "ttlcache: evicted %d expired entries", n)
		}
	}
}
