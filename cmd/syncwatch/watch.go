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

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/maruel/subcommands"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/logging"

	"github.com/loghours/syncbox/jobpoll"
	"github.com/loghours/syncbox/singlefetch"
	"github.com/loghours/syncbox/timesheet"
)

var cmdWatch = &subcommands.Command{
	UsageLine: "watch [-job ID] [-start]",
	ShortDesc: "follows a sync job until it finishes",
	LongDesc: `Follows a sync job until it reaches a terminal state.

With -start a new sync is kicked off first. The job is polled the same way
the front-end does it, with the slow background summary refresh running
alongside (and suppressed while the per-job poll is active).`,
	CommandRun: func() subcommands.CommandRun {
		r := &watchRun{}
		r.Flags.StringVar(&r.jobID, "job", "", "sync job to follow")
		r.Flags.BoolVar(&r.start, "start", false, "start a new sync first")
		return r
	},
}

type watchRun struct {
	subcommands.CommandRunBase
	jobID string
	start bool
}

func (r *watchRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	cfg, ok := loadConfig(ctx)
	if !ok {
		return 1
	}
	if r.jobID == "" && !r.start {
		logging.Errorf(ctx, "either -job or -start is required")
		return 1
	}
	if err := r.watch(ctx, cfg); err != nil {
		logging.Errorf(ctx, "%s", err)
		return 1
	}
	return 0
}

func (r *watchRun) watch(ctx context.Context, cfg *timesheet.Config) error {
	client := timesheet.NewClient(cfg, nil)

	jobID := r.jobID
	if r.start {
		var err error
		if jobID, err = client.StartSync(ctx); err != nil {
			return err
		}
		fmt.Printf("started sync job %s\n", color.CyanString(jobID))
	}

	poller := jobpoll.New(
		client.SyncProgress,
		func(p *timesheet.SyncProgress) bool { return p.Status.Terminal() },
		jobpoll.Options{Interval: cfg.PollInterval},
	)
	summary := singlefetch.New(func(ctx context.Context) (*timesheet.SyncSummary, error) {
		return client.SyncSummary(ctx)
	}, singlefetch.Options{})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	poller.Start(ctx, jobID, func(p *timesheet.SyncProgress) {
		printProgress(p)
		if p.Status.Terminal() {
			if p.Status == timesheet.StatusCompleted {
				done <- nil
			} else {
				done <- fmt.Errorf("sync %s %s: %s", p.JobID, p.Status, p.Message)
			}
		}
	}, func(err error) {
		done <- err
	})

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		poller.RunRefresh(ectx, cfg.RefreshInterval, func(ctx context.Context) error {
			s, err := summary.Fetch(ctx, true)
			if err != nil {
				return err
			}
			logging.Infof(ctx, "backend reports %d pending worklogs", s.PendingWorklogs)
			return nil
		})
		return nil
	})

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	poller.StopAll()
	cancel()
	_ = eg.Wait()
	return err
}

func printProgress(p *timesheet.SyncProgress) {
	bar := ""
	if p.Total > 0 {
		bar = fmt.Sprintf(" %d/%d", p.Processed, p.Total)
	}
	switch p.Status {
	case timesheet.StatusCompleted:
		fmt.Printf("%s%s\n", color.GreenString("completed"), bar)
	case timesheet.StatusFailed, timesheet.StatusCancelled:
		fmt.Printf("%s%s %s\n", color.RedString(string(p.Status)), bar, p.Message)
	default:
		fmt.Printf("%s%s\n", color.YellowString(string(p.Status)), bar)
	}
}
