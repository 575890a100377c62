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
	"net/url"
	"time"

	"github.com/loghours/syncbox/cachekey"
	"github.com/loghours/syncbox/ttlcache"
)

// queryNamespace prefixes every cache key owned by QueryCatalog.
const queryNamespace = "jira:queries"

// JQLQuery is one saved JIRA query usable as a worklog filter.
type JQLQuery struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	JQL     string `json:"jql"`
	Project string `json:"project,omitempty"`
}

// JIRAQueries fetches the saved queries, optionally filtered by project key.
func (c *Client) JIRAQueries(ctx context.Context, project string) ([]JQLQuery, error) {
	var payload struct {
		Queries []JQLQuery `json:"queries"`
	}
	path := "/api/v1/jira/queries"
	if project != "" {
		path += "?project=" + url.QueryEscape(project)
	}
	if err := c.call(ctx, http.MethodGet, path, &payload); err != nil {
		return nil, err
	}
	return payload.Queries, nil
}

// QueryCatalog serves saved JIRA queries through a TTL response cache, so
// admin screens reopening the same list do not refetch it every time.
//
// After any mutation of saved queries the owning service must call
// InvalidateAll.
type QueryCatalog struct {
	client *Client
	cache  *ttlcache.Cache[[]JQLQuery]
}

// NewQueryCatalog creates a catalog over client. ttl <= 0 selects the cache
// default.
func NewQueryCatalog(client *Client, ttl time.Duration) *QueryCatalog {
	return &QueryCatalog{
		client: client,
		cache:  ttlcache.New[[]JQLQuery](ttl),
	}
}

// Queries returns saved queries for the given project filter, from cache
// when a live entry exists.
func (q *QueryCatalog) Queries(ctx context.Context, project string) ([]JQLQuery, error) {
	key := cachekey.New(queryNamespace).Add("project", orNil(project)).Build()
	if cached, ok := q.cache.Get(ctx, key); ok {
		return cached, nil
	}
	queries, err := q.client.JIRAQueries(ctx, project)
	if err != nil {
		return nil, err
	}
	q.cache.Set(ctx, key, queries, 0)
	return queries, nil
}

// InvalidateAll drops every cached query list; call after a mutation.
func (q *QueryCatalog) InvalidateAll() {
	q.cache.InvalidatePrefix(queryNamespace)
}

// orNil maps the empty filter to nil so it is omitted from the cache key.
func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
