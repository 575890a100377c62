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

// Package jobpoll monitors asynchronous backend jobs by polling their
// progress on a fixed interval.
//
// Each job gets an independent loop that fetches progress, reports it
// through a callback and stops itself once a terminal status is observed or
// the fetch fails. Loops do not retry failed polls; retry, if any, belongs
// to the fetch layer underneath. A slower best-effort refresh loop can run
// alongside, suppressed while any per-job loop is active so the backend is
// not asked twice for the same thing.
//
// Timers run on the context clock, so tests advance a testclock instead of
// waiting.
package jobpoll

import (
	"context"
	"sync"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/logging"
)

// DefaultInterval is the delay between two progress fetches of one job.
const DefaultInterval = 3 * time.Second

// ProgressFunc fetches the current progress of one job.
type ProgressFunc[P any] func(ctx context.Context, jobID string) (P, error)

// TerminalFunc reports whether a progress value is terminal, i.e. no further
// updates will ever occur for its job.
type TerminalFunc[P any] func(p P) bool

// Options tune a Poller.
type Options struct {
	// Interval between progress fetches of one job; <= 0 selects
	// DefaultInterval.
	Interval time.Duration
}

type registration struct {
	cancel context.CancelFunc
	done   chan struct{} // closed when the loop goroutine exits
}

// Poller runs at most one polling loop per job. Safe for concurrent use.
type Poller[P any] struct {
	fetch    ProgressFunc[P]
	terminal TerminalFunc[P]
	interval time.Duration

	mu   sync.Mutex
	regs map[string]*registration
}

// New creates a Poller. terminal decides when a loop stops on its own.
func New[P any](fetch ProgressFunc[P], terminal TerminalFunc[P], opts Options) *Poller[P] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Poller[P]{
		fetch:    fetch,
		terminal: terminal,
		interval: opts.Interval,
		regs:     map[string]*registration{},
	}
}

// Start begins polling the given job, replacing any loop already running for
// it, so at most one loop per job exists.
//
// The loop fetches immediately, then every interval. onProgress receives
// every successful fetch; when the value is terminal the loop tears itself
// down without scheduling another fetch. A fetch error is reported through
// onError and ends the loop. Results arriving after the loop was stopped or
// replaced are discarded.
func (p *Poller[P]) Start(ctx context.Context, jobID string, onProgress func(P), onError func(error)) {
	ctx, cancel := context.WithCancel(ctx)
	reg := &registration{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	prev := p.regs[jobID]
	p.regs[jobID] = reg
	p.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	go p.run(ctx, jobID, reg, onProgress, onError)
}

func (p *Poller[P]) run(ctx context.Context, jobID string, reg *registration, onProgress func(P), onError func(error)) {
	defer close(reg.done)
	defer p.drop(jobID, reg)

	for {
		prog, err := p.fetch(ctx, jobID)

		// The registration may have been stopped or replaced while the
		// fetch was out. Its result is nobody's business anymore.
		if ctx.Err() != nil || !p.owns(jobID, reg) {
			return
		}
		if err != nil {
			onError(err)
			return
		}
		onProgress(prog)
		if p.terminal(prog) {
			return
		}
		if tr := <-clock.After(ctx, p.interval); tr.Err != nil {
			return
		}
	}
}

// Stop cancels the loop of one job, if any. Idempotent. Blocks until the
// loop goroutine has exited, so no callback fires after Stop returns. Must
// not be called from inside a callback.
func (p *Poller[P]) Stop(jobID string) {
	p.mu.Lock()
	reg := p.regs[jobID]
	delete(p.regs, jobID)
	p.mu.Unlock()
	if reg != nil {
		reg.cancel()
		<-reg.done
	}
}

// StopAll stops every active loop; used on teardown. Blocks like Stop.
func (p *Poller[P]) StopAll() {
	p.mu.Lock()
	regs := p.regs
	p.regs = map[string]*registration{}
	p.mu.Unlock()
	for _, reg := range regs {
		reg.cancel()
	}
	for _, reg := range regs {
		<-reg.done
	}
}

// Active returns the number of jobs currently being polled.
func (p *Poller[P]) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regs)
}

// RunRefresh invokes refresh every interval until ctx is done, skipping
// ticks while any per-job loop is active to avoid hitting the backend twice
// for the same concern. Refresh failures are logged and do not end the loop.
// Blocks; run it in its own goroutine.
func (p *Poller[P]) RunRefresh(ctx context.Context, interval time.Duration, refresh func(ctx context.Context) error) {
	for {
		if tr := <-clock.After(ctx, interval); tr.Err != nil {
			return
		}
		if p.Active() > 0 {
			continue
		}
		if err := refresh(ctx); err != nil {
			logging.Warningf(ctx, "jobpoll: periodic refresh failed: %s", err)
		}
	}
}

// owns reports whether reg is still the current registration for jobID.
func (p *Poller[P]) owns(jobID string, reg *registration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[jobID] == reg
}

// drop removes reg if it is still current, releasing its context.
func (p *Poller[P]) drop(jobID string, reg *registration) {
	p.mu.Lock()
	if p.regs[jobID] == reg {
		delete(p.regs, jobID)
	}
	p.mu.Unlock()
	reg.cancel()
}
