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

// Package timesheet defines the domain payloads of the Loghours backend and
// a thin REST client for them.
//
// The client owns no caching or retry policy; it performs one request per
// call and classifies every failure through the apierr package. Callers wire
// it into periodcache, singlefetch and jobpoll as the fetch layer.
package timesheet

import (
	"time"
)

// SyncStatus is the lifecycle state of one JIRA worklog sync job.
type SyncStatus string

const (
	StatusPending   SyncStatus = "pending"
	StatusRunning   SyncStatus = "running"
	StatusCompleted SyncStatus = "completed"
	StatusFailed    SyncStatus = "failed"
	StatusCancelled SyncStatus = "cancelled"
)

// Terminal reports whether no further progress updates will occur.
func (s SyncStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// DayStatus describes one calendar day of one user's timesheet.
type DayStatus struct {
	Date            string `json:"date"` // "YYYY-MM-DD"
	LoggedSeconds   int    `json:"loggedSeconds"`
	RequiredSeconds int    `json:"requiredSeconds"`
	Approved        bool   `json:"approved"`
}

// Complete reports whether the day needs no further entries.
func (d DayStatus) Complete() bool {
	return d.LoggedSeconds >= d.RequiredSeconds
}

// SyncProgress is the progress payload of one running sync job.
type SyncProgress struct {
	JobID     string     `json:"jobId"`
	Status    SyncStatus `json:"status"`
	Processed int        `json:"processed"`
	Total     int        `json:"total"`
	Message   string     `json:"message,omitempty"`
}

// SyncSummary is the singleton "how is sync doing overall" resource,
// requested frequently by several screens.
type SyncSummary struct {
	LastJobID       string     `json:"lastJobId"`
	LastStatus      SyncStatus `json:"lastStatus"`
	LastFinished    time.Time  `json:"lastFinished"`
	PendingWorklogs int        `json:"pendingWorklogs"`
}
