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

package periodcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.chromium.org/luci/common/clock/testclock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
)

var testTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func may() PeriodID  { return PeriodID{Year: 2024, Month: time.May} }
func june() PeriodID { return PeriodID{Year: 2024, Month: time.June} }

func TestPeriodID(t *testing.T) {
	t.Parallel()

	ftt.Run("PeriodID", t, func(t *ftt.Test) {
		assert.Loosely(t, may().Key(), should.Equal("2024-05"))

		id, err := ParsePeriodID("2024-05")
		assert.Loosely(t, err, should.BeNil)
		assert.Loosely(t, id, should.Match(may()))

		_, err = ParsePeriodID("2024-13")
		assert.Loosely(t, err, should.NotBeNil)

		_, err = ParsePeriodID("whenever")
		assert.Loosely(t, err, should.NotBeNil)
	})
}

func TestStore(t *testing.T) {
	t.Parallel()

	ftt.Run("Store", t, func(t *ftt.Test) {
		ctx, tc := testclock.UseTime(context.Background(), testTime)

		var calls int64
		fetch := func(ctx context.Context, id PeriodID) (map[string]string, error) {
			atomic.AddInt64(&calls, 1)
			return map[string]string{id.Key() + "-01": "logged"}, nil
		}

		t.Run("Load caches and subsequent loads skip the fetch", func(t *ftt.Test) {
			s := New(fetch, Options{})

			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			assert.Loosely(t, atomic.LoadInt64(&calls), should.Equal(1))

			got := s.Statuses(ctx, may())
			assert.Loosely(t, got, should.Match(map[string]string{"2024-05-01": "logged"}))
		})

		t.Run("Stale entries are refetched and ignored by reads", func(t *ftt.Test) {
			s := New(fetch, Options{MaxAge: time.Minute})

			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			tc.Add(time.Minute)
			assert.Loosely(t, s.Statuses(ctx, may()), should.HaveLength(0))

			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			assert.Loosely(t, atomic.LoadInt64(&calls), should.Equal(2))
			assert.Loosely(t, s.Statuses(ctx, may()), should.HaveLength(1))
		})

		t.Run("Force refetches a fresh entry", func(t *ftt.Test) {
			s := New(fetch, Options{})
			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			assert.Loosely(t, s.Load(ctx, may(), true), should.BeNil)
			assert.Loosely(t, atomic.LoadInt64(&calls), should.Equal(2))
		})

		t.Run("Concurrent loads collapse into one fetch", func(t *ftt.Test) {
			gate := make(chan struct{})
			entered := make(chan struct{})
			var blockedCalls int64
			s := New(func(ctx context.Context, id PeriodID) (map[string]string, error) {
				atomic.AddInt64(&blockedCalls, 1)
				close(entered)
				<-gate
				return map[string]string{"2024-05-01": "logged"}, nil
			}, Options{})

			errc := make(chan error, 2)
			go func() { errc <- s.Load(ctx, may(), false) }()
			<-entered
			assert.Loosely(t, s.IsLoading(may()), should.BeTrue)

			// Second caller joins the in-flight fetch.
			go func() { errc <- s.Load(ctx, may(), false) }()
			time.Sleep(10 * time.Millisecond)

			close(gate)
			assert.Loosely(t, <-errc, should.BeNil)
			assert.Loosely(t, <-errc, should.BeNil)
			assert.Loosely(t, atomic.LoadInt64(&blockedCalls), should.Equal(1))
			assert.Loosely(t, s.IsLoading(may()), should.BeFalse)
		})

		t.Run("Joined load shares the failure too", func(t *ftt.Test) {
			gate := make(chan struct{})
			entered := make(chan struct{})
			var enteredOnce sync.Once
			boom := errors.New("boom")
			s := New(func(ctx context.Context, id PeriodID) (map[string]string, error) {
				enteredOnce.Do(func() { close(entered) })
				<-gate
				return nil, boom
			}, Options{})

			errc := make(chan error, 2)
			go func() { errc <- s.Load(ctx, may(), false) }()
			<-entered
			go func() { errc <- s.Load(ctx, may(), false) }()
			time.Sleep(10 * time.Millisecond)
			close(gate)

			for range 2 {
				assert.Loosely(t, errors.Is(<-errc, boom), should.BeTrue)
			}
		})

		t.Run("Capacity eviction drops the oldest fetch", func(t *ftt.Test) {
			s := New(fetch, Options{MaxPeriods: 2, MaxAge: time.Hour})

			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			tc.Add(time.Second)
			assert.Loosely(t, s.Load(ctx, june(), false), should.BeNil)
			tc.Add(time.Second)
			assert.Loosely(t, s.Load(ctx, PeriodID{2024, time.July}, false), should.BeNil)

			assert.Loosely(t, s.Len(), should.Equal(2))
			assert.Loosely(t, s.Statuses(ctx, may()), should.HaveLength(0))
			assert.Loosely(t, s.Statuses(ctx, june()), should.HaveLength(1))
		})

		t.Run("Reloading a cached period does not evict others", func(t *ftt.Test) {
			s := New(fetch, Options{MaxPeriods: 2, MaxAge: time.Hour})

			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			tc.Add(time.Second)
			assert.Loosely(t, s.Load(ctx, june(), false), should.BeNil)
			tc.Add(time.Second)
			assert.Loosely(t, s.Load(ctx, june(), true), should.BeNil)

			assert.Loosely(t, s.Len(), should.Equal(2))
			assert.Loosely(t, s.Statuses(ctx, may()), should.HaveLength(1))
		})

		t.Run("Merged flattens fresh periods, earliest fetch wins collisions", func(t *ftt.Test) {
			var mu sync.Mutex
			payload := map[string]map[string]string{}
			s := New(func(ctx context.Context, id PeriodID) (map[string]string, error) {
				mu.Lock()
				defer mu.Unlock()
				return payload[id.Key()], nil
			}, Options{MaxAge: time.Hour})

			mu.Lock()
			payload["2024-05"] = map[string]string{"2024-05-01": "logged", "shared": "from-may"}
			payload["2024-06"] = map[string]string{"2024-06-01": "missing", "shared": "from-june"}
			mu.Unlock()

			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			tc.Add(time.Second)
			assert.Loosely(t, s.Load(ctx, june(), false), should.BeNil)

			merged := s.Merged(ctx)
			assert.Loosely(t, merged, should.Match(map[string]string{
				"2024-05-01": "logged",
				"2024-06-01": "missing",
				"shared":     "from-may",
			}))
		})

		t.Run("Failed load records the error; forced reload clears it", func(t *ftt.Test) {
			boom := errors.New("network down")
			fail := true
			s := New(func(ctx context.Context, id PeriodID) (map[string]string, error) {
				if fail {
					return nil, boom
				}
				return map[string]string{"2024-05-01": "logged"}, nil
			}, Options{})

			err := s.Load(ctx, may(), false)
			assert.Loosely(t, errors.Is(err, boom), should.BeTrue)
			assert.Loosely(t, errors.Is(s.Err(may()), boom), should.BeTrue)
			assert.Loosely(t, s.Statuses(ctx, may()), should.HaveLength(0))

			fail = false
			assert.Loosely(t, s.Load(ctx, may(), true), should.BeNil)
			assert.Loosely(t, s.Err(may()), should.BeNil)
			assert.Loosely(t, s.Statuses(ctx, may()), should.HaveLength(1))
		})

		t.Run("Invalidate drops one period and its error", func(t *ftt.Test) {
			s := New(fetch, Options{})
			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			s.Invalidate(may())
			assert.Loosely(t, s.Statuses(ctx, may()), should.HaveLength(0))
			assert.Loosely(t, s.Len(), should.BeZero)
		})

		t.Run("Clear drops everything", func(t *ftt.Test) {
			s := New(fetch, Options{})
			assert.Loosely(t, s.Load(ctx, may(), false), should.BeNil)
			assert.Loosely(t, s.Load(ctx, june(), false), should.BeNil)
			s.Clear()
			assert.Loosely(t, s.Len(), should.BeZero)
			assert.Loosely(t, s.Merged(ctx), should.HaveLength(0))
		})
	})
}
