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

// Package singlefetch wraps a frequently-requested singleton resource fetch
// with a freshness window, in-flight deduplication and transient-error
// retry.
//
// A value fetched less than CacheWindow ago is served from memory. While a
// fetch is in flight every further caller waits for and shares its outcome,
// so the backend sees at most one request at a time. Failures tagged
// transient (see the apierr package) are retried with exponential backoff
// plus jitter; everything else is returned immediately.
package singlefetch

import (
	"context"
	"sync"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/data/rand/mathrand"
	"go.chromium.org/luci/common/retry"
	"go.chromium.org/luci/common/retry/transient"

	"github.com/loghours/syncbox/apierr"
)

const (
	// DefaultCacheWindow is how long a fetched value stays fresh.
	DefaultCacheWindow = 5 * time.Minute

	// DefaultAttempts is the total number of attempts per fetch, the first
	// one included.
	DefaultAttempts = 3

	// DefaultBaseDelay is the delay before the first retry; it doubles on
	// every further retry.
	DefaultBaseDelay = time.Second

	// DefaultMaxJitter bounds the random addition to every retry delay.
	DefaultMaxJitter = time.Second

	// DefaultMaxDelay caps a single backoff delay.
	DefaultMaxDelay = 10 * time.Second
)

// Options tune a Fetcher.
type Options struct {
	CacheWindow time.Duration // <= 0 selects DefaultCacheWindow
	Attempts    int           // <= 0 selects DefaultAttempts
	BaseDelay   time.Duration // <= 0 selects DefaultBaseDelay
	MaxJitter   time.Duration // < 0 disables jitter, 0 selects DefaultMaxJitter
	MaxDelay    time.Duration // <= 0 selects DefaultMaxDelay

	// Allowed gates every network attempt; when it returns false the fetch
	// fails fast with an Unauthorized error and the network is not touched.
	// nil means always allowed. Typically wired to the session state.
	Allowed func(ctx context.Context) bool
}

// inflight is shared by every Fetch call that joined one attempt.
type inflight[V any] struct {
	done chan struct{} // closed when the attempt settles
	val  V             // valid after done is closed
	err  error
}

// Fetcher caches one singleton resource. Safe for concurrent use.
type Fetcher[V any] struct {
	fetch func(ctx context.Context) (V, error)
	opts  Options

	mu        sync.Mutex
	cached    *V
	fetchedAt time.Time
	cur       *inflight[V]
}

// New creates a Fetcher around the given network call.
func New[V any](fetch func(ctx context.Context) (V, error), opts Options) *Fetcher[V] {
	if opts.CacheWindow <= 0 {
		opts.CacheWindow = DefaultCacheWindow
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxJitter == 0 {
		opts.MaxJitter = DefaultMaxJitter
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	return &Fetcher[V]{fetch: fetch, opts: opts}
}

// Fetch returns the singleton resource.
//
// Serves the cached value when it is fresh and force is false. Joins any
// attempt already in flight. Otherwise performs the retrying network call,
// updating the cache on success and leaving it untouched on failure.
func (f *Fetcher[V]) Fetch(ctx context.Context, force bool) (V, error) {
	f.mu.Lock()
	if !force && f.cached != nil && clock.Now(ctx).Sub(f.fetchedAt) < f.opts.CacheWindow {
		v := *f.cached
		f.mu.Unlock()
		return v, nil
	}
	if cur := f.cur; cur != nil {
		f.mu.Unlock()
		select {
		case <-cur.done:
			return cur.val, cur.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	if f.opts.Allowed != nil && !f.opts.Allowed(ctx) {
		f.mu.Unlock()
		var zero V
		return zero, apierr.New(apierr.Unauthorized, "not signed in, refusing to fetch")
	}
	cur := &inflight[V]{done: make(chan struct{})}
	f.cur = cur
	f.mu.Unlock()

	val, err := f.fetchWithRetry(ctx)

	f.mu.Lock()
	if err == nil {
		v := val
		f.cached = &v
		f.fetchedAt = clock.Now(ctx)
	}
	f.cur = nil
	f.mu.Unlock()

	cur.val, cur.err = val, err
	close(cur.done)
	return val, err
}

// Cached returns the cached value if it is still fresh, without fetching.
func (f *Fetcher[V]) Cached(ctx context.Context) (V, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached != nil && clock.Now(ctx).Sub(f.fetchedAt) < f.opts.CacheWindow {
		return *f.cached, true
	}
	var zero V
	return zero, false
}

// Invalidate drops the cached value so the next Fetch hits the network.
func (f *Fetcher[V]) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = nil
}

func (f *Fetcher[V]) fetchWithRetry(ctx context.Context) (V, error) {
	var val V
	err := retry.Retry(ctx, transient.Only(f.backoff), func() error {
		var err error
		val, err = f.fetch(ctx)
		return err
	}, retry.LogCallback(ctx, "singlefetch"))
	return val, err
}

// backoff builds a fresh iterator per Fetch, so the attempt counter always
// starts from zero.
func (f *Fetcher[V]) backoff() retry.Iterator {
	return &jitterBackoff{
		ExponentialBackoff: retry.ExponentialBackoff{
			Limited: retry.Limited{
				Delay:   f.opts.BaseDelay,
				Retries: f.opts.Attempts - 1,
			},
			Multiplier: 2,
			MaxDelay:   f.opts.MaxDelay,
		},
		maxJitter: f.opts.MaxJitter,
	}
}

// jitterBackoff adds uniform random jitter on top of exponential backoff so
// that clients knocked over by the same outage do not retry in lockstep.
type jitterBackoff struct {
	retry.ExponentialBackoff
	maxJitter time.Duration
}

func (it *jitterBackoff) Next(ctx context.Context, err error) time.Duration {
	d := it.ExponentialBackoff.Next(ctx, err)
	if d == retry.Stop {
		return retry.Stop
	}
	if it.maxJitter > 0 {
		d += time.Duration(mathrand.Int63n(ctx, int64(it.maxJitter)))
	}
	return d
}
