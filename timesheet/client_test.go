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

package timesheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"github.com/loghours/syncbox/apierr"
	"github.com/loghours/syncbox/periodcache"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	cfg := &Config{BaseURL: srv.URL, Token: "tok", RequestTimeout: 5 * time.Second}
	return NewClient(cfg, srv.Client()), srv
}

func TestClient(t *testing.T) {
	t.Parallel()

	ftt.Run("Client", t, func(t *ftt.Test) {
		ctx := context.Background()

		t.Run("MonthStatuses maps days by date", func(t *ftt.Test) {
			var gotPath, gotAuth string
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				w.Write([]byte(`{"days":[
					{"date":"2024-05-01","loggedSeconds":28800,"requiredSeconds":28800,"approved":true},
					{"date":"2024-05-02","loggedSeconds":0,"requiredSeconds":28800}
				]}`))
			}))
			defer srv.Close()

			got, err := c.MonthStatuses(ctx, periodcache.PeriodID{Year: 2024, Month: time.May})
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, gotPath, should.Equal("/api/v1/worklog/months/2024-05"))
			assert.Loosely(t, gotAuth, should.Equal("Bearer tok"))
			assert.Loosely(t, got, should.HaveLength(2))
			assert.Loosely(t, got["2024-05-01"].Complete(), should.BeTrue)
			assert.Loosely(t, got["2024-05-02"].Complete(), should.BeFalse)
		})

		t.Run("SyncSummary decodes the singleton", func(t *ftt.Test) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"lastJobId":"j1","lastStatus":"completed","pendingWorklogs":4}`))
			}))
			defer srv.Close()

			got, err := c.SyncSummary(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, got.LastJobID, should.Equal("j1"))
			assert.Loosely(t, got.LastStatus.Terminal(), should.BeTrue)
			assert.Loosely(t, got.PendingWorklogs, should.Equal(4))
		})

		t.Run("StartSync returns the job id", func(t *ftt.Test) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Loosely(t, r.Method, should.Equal(http.MethodPost))
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"jobId":"j42"}`))
			}))
			defer srv.Close()

			id, err := c.StartSync(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, id, should.Equal("j42"))
		})

		t.Run("HTTP errors come back classified", func(t *ftt.Test) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"no such job"}`))
			}))
			defer srv.Close()

			_, err := c.SyncProgress(ctx, "missing")
			assert.Loosely(t, apierr.KindOf(err), should.Equal(apierr.NotFound))
			assert.Loosely(t, apierr.StatusCode(err), should.Equal(http.StatusNotFound))
			assert.Loosely(t, apierr.IsRetryable(err), should.BeFalse)
			assert.Loosely(t, err.Error(), should.ContainSubstring("no such job"))
		})

		t.Run("Server errors are retryable", func(t *ftt.Test) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			_, err := c.SyncSummary(ctx)
			assert.Loosely(t, apierr.KindOf(err), should.Equal(apierr.ServiceUnavailable))
			assert.Loosely(t, apierr.IsRetryable(err), should.BeTrue)
		})

		t.Run("Unreachable server classifies as network failure", func(t *ftt.Test) {
			srv := httptest.NewServer(http.NotFoundHandler())
			srv.Close() // nothing listens anymore
			cfg := &Config{BaseURL: srv.URL, RequestTimeout: time.Second}
			c := NewClient(cfg, nil)

			_, err := c.SyncSummary(ctx)
			assert.Loosely(t, apierr.KindOf(err), should.Equal(apierr.NetworkUnreachable))
			assert.Loosely(t, apierr.IsRetryable(err), should.BeTrue)
		})

		t.Run("Empty payload is an application error", func(t *ftt.Test) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			_, err := c.SyncSummary(ctx)
			assert.Loosely(t, apierr.KindOf(err), should.Equal(apierr.Application))
			assert.Loosely(t, apierr.IsRetryable(err), should.BeFalse)
		})

		t.Run("Undecodable payload is an application error", func(t *ftt.Test) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>definitely not json</html>`))
			}))
			defer srv.Close()

			_, err := c.SyncSummary(ctx)
			assert.Loosely(t, apierr.KindOf(err), should.Equal(apierr.Application))
		})
	})
}
