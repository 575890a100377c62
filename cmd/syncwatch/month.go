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
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/logging"

	"github.com/loghours/syncbox/periodcache"
	"github.com/loghours/syncbox/timesheet"
)

var cmdMonth = &subcommands.Command{
	UsageLine: "month [-period YYYY-MM] [-force]",
	ShortDesc: "loads and prints one month of day statuses",
	LongDesc: `Loads one month of day statuses through the period cache and
prints the per-day table. Defaults to the current month.`,
	CommandRun: func() subcommands.CommandRun {
		r := &monthRun{}
		r.Flags.StringVar(&r.period, "period", "", `month to load as "YYYY-MM" (default: current)`)
		r.Flags.BoolVar(&r.force, "force", false, "refetch even if cached")
		return r
	},
}

type monthRun struct {
	subcommands.CommandRunBase
	period string
	force  bool
}

func (r *monthRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	cfg, ok := loadConfig(ctx)
	if !ok {
		return 1
	}
	client := timesheet.NewClient(cfg, nil)

	id := periodcache.PeriodID{
		Year:  clock.Now(ctx).Year(),
		Month: clock.Now(ctx).Month(),
	}
	if r.period != "" {
		var err error
		if id, err = periodcache.ParsePeriodID(r.period); err != nil {
			logging.Errorf(ctx, "%s", err)
			return 1
		}
	}

	store := periodcache.New(client.MonthStatuses, periodcache.Options{})
	if err := store.Load(ctx, id, r.force); err != nil {
		logging.Errorf(ctx, "%s", err)
		return 1
	}

	statuses := store.Statuses(ctx, id)
	dates := make([]string, 0, len(statuses))
	for date := range statuses {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	fmt.Printf("%s — %d days\n", id, len(dates))
	for _, date := range dates {
		day := statuses[date]
		logged := (time.Duration(day.LoggedSeconds) * time.Second).String()
		switch {
		case day.Approved:
			fmt.Printf("  %s  %-8s %s\n", date, logged, color.GreenString("approved"))
		case day.Complete():
			fmt.Printf("  %s  %-8s %s\n", date, logged, color.CyanString("complete"))
		default:
			fmt.Printf("  %s  %-8s %s\n", date, logged, color.YellowString("incomplete"))
		}
	}
	return 0
}
