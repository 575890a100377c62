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

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/logging"

	"github.com/loghours/syncbox/apierr"
	"github.com/loghours/syncbox/singlefetch"
	"github.com/loghours/syncbox/timesheet"
)

var cmdSummary = &subcommands.Command{
	UsageLine: "summary [-force]",
	ShortDesc: "prints the sync summary",
	LongDesc: `Prints the sync summary singleton.

Goes through the same cached single-flight fetcher the front-end uses, so a
second invocation within the cache window is answered from memory.`,
	CommandRun: func() subcommands.CommandRun {
		r := &summaryRun{}
		r.Flags.BoolVar(&r.force, "force", false, "bypass the cache window")
		return r
	},
}

type summaryRun struct {
	subcommands.CommandRunBase
	force bool
}

func (r *summaryRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	cfg, ok := loadConfig(ctx)
	if !ok {
		return 1
	}
	client := timesheet.NewClient(cfg, nil)

	fetcher := singlefetch.New(func(ctx context.Context) (*timesheet.SyncSummary, error) {
		return client.SyncSummary(ctx)
	}, singlefetch.Options{})

	summary, err := fetcher.Fetch(ctx, r.force)
	if err != nil {
		logging.Errorf(ctx, "fetching sync summary: %s", err)
		fmt.Println(color.RedString(apierr.KindOf(err).Message()))
		return 1
	}

	printSummary(summary)
	return 0
}

func printSummary(s *timesheet.SyncSummary) {
	statusColor := color.GreenString
	if s.LastStatus == timesheet.StatusFailed {
		statusColor = color.RedString
	}
	fmt.Printf("last job:         %s (%s)\n", s.LastJobID, statusColor(string(s.LastStatus)))
	if !s.LastFinished.IsZero() {
		fmt.Printf("finished:         %s\n", s.LastFinished.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("pending worklogs: %d\n", s.PendingWorklogs)
}
