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

// Package apierr classifies transport failures from the timesheet backend.
//
// Errors crossing the network boundary are tagged with a Kind (the taxonomy
// the UI layer renders) and with the HTTP status code that produced them.
// Errors that are worth retrying (the request never reached the server, the
// server answered 5xx, 408 or 429) additionally carry transient.Tag, which is
// what the retry layer keys on.
package apierr

import (
	"net/http"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/errors/errtag"
	"go.chromium.org/luci/common/retry/transient"
)

// Kind is the coarse failure category surfaced to callers.
type Kind int

const (
	Unknown Kind = iota
	NetworkUnreachable
	Unauthorized
	Forbidden
	NotFound
	Validation
	ServerError
	ServiceUnavailable
	// Application marks a non-transport failure originating in payload
	// handling, e.g. an empty or undecodable response body. Never retried.
	Application
)

// String returns the stable identifier of the kind.
func (k Kind) String() string {
	switch k {
	case NetworkUnreachable:
		return "network-unreachable"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not-found"
	case Validation:
		return "validation"
	case ServerError:
		return "server-error"
	case ServiceUnavailable:
		return "service-unavailable"
	case Application:
		return "application"
	default:
		return "unknown"
	}
}

// Message returns a user-facing description of the kind, suitable for the UI
// layer to show as-is.
func (k Kind) Message() string {
	switch k {
	case NetworkUnreachable:
		return "The server could not be reached. Check your connection."
	case Unauthorized:
		return "Your session has expired. Sign in again."
	case Forbidden:
		return "You do not have permission to perform this action."
	case NotFound:
		return "The requested resource was not found."
	case Validation:
		return "The request was rejected by the server."
	case ServerError:
		return "The server encountered an internal error."
	case ServiceUnavailable:
		return "The service is temporarily unavailable. Try again later."
	case Application:
		return "The server returned an unexpected response."
	default:
		return "An unexpected error occurred."
	}
}

// KindTag carries the failure category on an error.
var KindTag = errtag.Make("timesheet API error kind", Unknown)

// StatusCodeTag carries the HTTP status code that produced an error. 0 means
// the request never reached the server.
var StatusCodeTag = errtag.Make("timesheet API HTTP status code", 0)

// KindOf returns the Kind attached to err, or Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	return KindTag.ValueOrDefault(err)
}

// StatusCode returns 200 for a nil error, and otherwise the tagged status
// code (0 when the request never reached the server).
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return StatusCodeTag.ValueOrDefault(err)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return transient.Tag.In(err)
}

// Classify tags err with the taxonomy kind and status code of an HTTP
// response. Pass status 0 when the request never reached the server (DNS
// failure, connection refused, timeout before a response line).
//
// Returns nil for a nil err.
func Classify(status int, err error) error {
	if err == nil {
		return nil
	}
	err = KindTag.ApplyValue(err, kindForStatus(status))
	err = StatusCodeTag.ApplyValue(err, status)
	if retryableStatus(status) {
		err = transient.Tag.Apply(err)
	}
	return err
}

// New creates an error of the given kind with no HTTP status attached.
func New(kind Kind, msg string) error {
	return KindTag.ApplyValue(errors.New(msg), kind)
}

// Newf is like New with formatting.
func Newf(kind Kind, format string, args ...any) error {
	return KindTag.ApplyValue(errors.Fmt(format, args...), kind)
}

func kindForStatus(status int) Kind {
	switch {
	case status == 0 || status == http.StatusRequestTimeout:
		return NetworkUnreachable
	case status == http.StatusUnauthorized:
		return Unauthorized
	case status == http.StatusForbidden:
		return Forbidden
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return Validation
	case status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests:
		return ServiceUnavailable
	case status >= 500:
		return ServerError
	default:
		return Unknown
	}
}

func retryableStatus(status int) bool {
	switch {
	case status == 0:
		return true
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}
