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

// Package periodcache caches date-keyed status maps one calendar month at a
// time.
//
// The store holds at most a fixed number of months, evicting the one fetched
// longest ago when a new month arrives at capacity. Concurrent loads of the
// same month collapse into a single fetch: the first caller performs it, all
// later callers wait for and share its outcome. Per-month loading flags and
// last-error capture are exposed so the UI layer can render spinners and
// banners without touching the network.
package periodcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

const (
	// DefaultMaxPeriods is how many months are cached at once.
	DefaultMaxPeriods = 6

	// DefaultMaxAge is how long a cached month stays fresh.
	DefaultMaxAge = 5 * time.Minute
)

// PeriodID identifies one calendar month.
type PeriodID struct {
	Year  int
	Month time.Month
}

// Key renders the canonical "YYYY-MM" form.
func (p PeriodID) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p PeriodID) String() string {
	return p.Key()
}

// ParsePeriodID parses the "YYYY-MM" form produced by Key.
func ParsePeriodID(s string) (PeriodID, error) {
	var year, month int
	if _, err := fmt.Sscanf(s, "%4d-%2d", &year, &month); err != nil {
		return PeriodID{}, errors.Fmt("bad period %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return PeriodID{}, errors.Fmt("bad period %q: month out of range", s)
	}
	return PeriodID{Year: year, Month: time.Month(month)}, nil
}

// FetchFunc retrieves the date-keyed statuses of one month from the backend.
// Keys of the returned map are day identifiers ("YYYY-MM-DD" in practice).
type FetchFunc[V any] func(ctx context.Context, id PeriodID) (map[string]V, error)

// Options tune a Store.
type Options struct {
	// MaxPeriods caps how many months are cached; <= 0 selects
	// DefaultMaxPeriods.
	MaxPeriods int

	// MaxAge is the freshness window of a cached month; <= 0 selects
	// DefaultMaxAge. A month older than this is refetched by Load and
	// ignored by reads.
	MaxAge time.Duration
}

type periodEntry[V any] struct {
	id        PeriodID
	statuses  map[string]V
	fetchedAt time.Time
}

// inflightLoad is shared by every Load call that joined one fetch attempt.
type inflightLoad struct {
	done chan struct{} // closed when the attempt settles
	err  error         // valid after done is closed
}

// Store is a bounded cache of month status maps. Safe for concurrent use.
type Store[V any] struct {
	fetch      FetchFunc[V]
	maxPeriods int
	maxAge     time.Duration

	mu      sync.Mutex
	entries map[string]*periodEntry[V]
	loading map[string]*inflightLoad
	errs    map[string]error
}

// New creates an empty store that fills itself through fetch.
func New[V any](fetch FetchFunc[V], opts Options) *Store[V] {
	if opts.MaxPeriods <= 0 {
		opts.MaxPeriods = DefaultMaxPeriods
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Store[V]{
		fetch:      fetch,
		maxPeriods: opts.MaxPeriods,
		maxAge:     opts.MaxAge,
		entries:    map[string]*periodEntry[V]{},
		loading:    map[string]*inflightLoad{},
		errs:       map[string]error{},
	}
}

// Load ensures the given month is cached.
//
// If a fresh entry already exists and force is false, returns immediately
// without a fetch. If a load of the same month is already in flight, waits
// for it and returns its outcome; exactly one fetch runs no matter how many
// callers ask concurrently. Otherwise fetches, caching the result on success
// (evicting the month fetched longest ago if at capacity) or recording the
// error on failure.
func (s *Store[V]) Load(ctx context.Context, id PeriodID, force bool) error {
	key := id.Key()

	s.mu.Lock()
	if !force {
		if e := s.entries[key]; e != nil && s.freshLocked(e, clock.Now(ctx)) {
			s.mu.Unlock()
			return nil
		}
	}
	if fl := s.loading[key]; fl != nil {
		s.mu.Unlock()
		select {
		case <-fl.done:
			return fl.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fl := &inflightLoad{done: make(chan struct{})}
	s.loading[key] = fl
	delete(s.errs, key)
	s.mu.Unlock()

	statuses, err := s.fetch(ctx, id)
	if err != nil {
		err = errors.Fmt("loading period %s: %w", key, err)
	}

	s.mu.Lock()
	if err != nil {
		s.errs[key] = err
	} else {
		if s.entries[key] == nil && len(s.entries) >= s.maxPeriods {
			s.evictOldestLocked(ctx)
		}
		s.entries[key] = &periodEntry[V]{
			id:        id,
			statuses:  statuses,
			fetchedAt: clock.Now(ctx),
		}
	}
	delete(s.loading, key)
	s.mu.Unlock()

	fl.err = err
	close(fl.done)
	return err
}

// Statuses returns a copy of the cached status map for the month, or an
// empty map if the month is absent or stale. Never fetches.
func (s *Store[V]) Statuses(ctx context.Context, id PeriodID) map[string]V {
	now := clock.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[id.Key()]
	if e == nil || !s.freshLocked(e, now) {
		return map[string]V{}
	}
	out := make(map[string]V, len(e.statuses))
	for k, v := range e.statuses {
		out[k] = v
	}
	return out
}

// Merged flattens every fresh cached month into one date-keyed lookup table.
// Months fetched earlier win on key collision (distinct months do not
// collide on real date keys).
func (s *Store[V]) Merged(ctx context.Context) map[string]V {
	now := clock.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]*periodEntry[V], 0, len(s.entries))
	for _, e := range s.entries {
		if s.freshLocked(e, now) {
			fresh = append(fresh, e)
		}
	}
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].fetchedAt.Before(fresh[j].fetchedAt)
	})

	out := map[string]V{}
	for _, e := range fresh {
		for k, v := range e.statuses {
			if _, dup := out[k]; !dup {
				out[k] = v
			}
		}
	}
	return out
}

// IsLoading reports whether a fetch for the month is currently in flight.
func (s *Store[V]) IsLoading(id PeriodID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[id.Key()] != nil
}

// Err returns the error recorded by the last failed load of the month, or
// nil. It is cleared when a new load attempt for the month begins.
func (s *Store[V]) Err(id PeriodID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[id.Key()]
}

// Invalidate drops the cached entry and recorded error of one month.
func (s *Store[V]) Invalidate(id PeriodID) {
	key := id.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	delete(s.errs, key)
}

// Clear drops all cached months and recorded errors.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]*periodEntry[V]{}
	s.errs = map[string]error{}
}

// Len returns the number of cached months, fresh or not.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store[V]) freshLocked(e *periodEntry[V], now time.Time) bool {
	return now.Sub(e.fetchedAt) < s.maxAge
}

func (s *Store[V]) evictOldestLocked(ctx context.Context) {
	var oldest *periodEntry[V]
	for _, e := range s.entries {
		if oldest == nil || e.fetchedAt.Before(oldest.fetchedAt) {
			oldest = e
		}
	}
	if oldest != nil {
		delete(s.entries, oldest.id.Key())
		logging.Debugf(ctx, "periodcache: evicted %s to stay within %d periods", oldest.id, s.maxPeriods)
	}
}
