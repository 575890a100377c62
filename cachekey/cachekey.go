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

// Package cachekey builds deterministic cache keys from a namespace prefix
// and a bag of request parameters.
//
// Two call sites describing the same logical request must produce the same
// key no matter what order they supply parameters in, otherwise the cache
// fragments. AddParams sorts the bag by parameter name to guarantee that;
// nil values are omitted entirely rather than serialized.
package cachekey

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Delimiter separates the prefix and the name:value segments of a key. It is
// not expected to appear inside parameter values.
const Delimiter = "|"

// Builder accumulates name:value segments under a prefix.
//
// Not safe for concurrent use; build a key in one goroutine.
type Builder struct {
	prefix   string
	segments []string
}

// New starts a key under the given namespace prefix, e.g. "jira:queries".
func New(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Add appends one name:value segment. A nil value (untyped, or a nil
// pointer, map or slice) is a no-op. Segments appear in the key in the order
// they were added.
func (b *Builder) Add(name string, value any) *Builder {
	if value == nil {
		return b
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return b
		}
		if rv.Kind() == reflect.Ptr {
			value = rv.Elem().Interface()
		}
	}
	b.segments = append(b.segments, name+":"+fmt.Sprint(value))
	return b
}

// AddParams appends every entry of the bag, sorted lexicographically by
// parameter name, so that permutations of the same bag build identical keys.
func (b *Builder) AddParams(params map[string]any) *Builder {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.Add(name, params[name])
	}
	return b
}

// Build renders the key.
func (b *Builder) Build() string {
	if len(b.segments) == 0 {
		return b.prefix
	}
	return b.prefix + Delimiter + strings.Join(b.segments, Delimiter)
}
