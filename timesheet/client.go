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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.chromium.org/luci/common/errors"

	"github.com/loghours/syncbox/apierr"
	"github.com/loghours/syncbox/periodcache"
)

// Client talks to the Loghours REST API. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client from cfg. A nil httpClient selects a default
// one bounded by cfg.RequestTimeout.
func NewClient(cfg *Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    httpClient,
	}
}

// MonthStatuses fetches the day statuses of one month, keyed by date.
//
// Fits periodcache.FetchFunc.
func (c *Client) MonthStatuses(ctx context.Context, id periodcache.PeriodID) (map[string]DayStatus, error) {
	var payload struct {
		Days []DayStatus `json:"days"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/worklog/months/"+id.Key(), &payload); err != nil {
		return nil, err
	}
	out := make(map[string]DayStatus, len(payload.Days))
	for _, d := range payload.Days {
		out[d.Date] = d
	}
	return out, nil
}

// SyncSummary fetches the singleton sync summary. Fits singlefetch.
func (c *Client) SyncSummary(ctx context.Context) (*SyncSummary, error) {
	out := &SyncSummary{}
	if err := c.call(ctx, http.MethodGet, "/api/v1/sync/summary", out); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncProgress fetches the progress of one sync job. Fits
// jobpoll.ProgressFunc.
func (c *Client) SyncProgress(ctx context.Context, jobID string) (*SyncProgress, error) {
	out := &SyncProgress{}
	if err := c.call(ctx, http.MethodGet, "/api/v1/sync/jobs/"+jobID, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartSync asks the backend to begin a new worklog sync and returns the job
// id to poll.
func (c *Client) StartSync(ctx context.Context) (string, error) {
	var payload struct {
		JobID string `json:"jobId"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/sync/jobs", &payload); err != nil {
		return "", err
	}
	if payload.JobID == "" {
		return "", apierr.New(apierr.Application, "sync job created without an id")
	}
	return payload.JobID, nil
}

// call performs one request and decodes the JSON response into out.
//
// Every failure mode comes back classified: transport errors as
// NetworkUnreachable, HTTP statuses per the apierr taxonomy, and empty or
// undecodable bodies as Application errors.
func (c *Client) call(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Fmt("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Classify(0, errors.Fmt("calling %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apierr.Classify(0, errors.Fmt("reading %s %s response: %w", method, path, err))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apierr.Classify(resp.StatusCode, errors.Fmt("%s %s: %s", method, path, strings.TrimSpace(httpErrorDetail(resp.StatusCode, body))))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return apierr.Newf(apierr.Application, "%s %s: empty response payload", method, path)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apierr.KindTag.ApplyValue(errors.Fmt("decoding %s %s response: %w", method, path, err), apierr.Application)
	}
	return nil
}

// httpErrorDetail extracts the backend's error message when it sent one.
func httpErrorDetail(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("HTTP %d", status)
}
