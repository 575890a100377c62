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

// Command syncwatch is a terminal window into the Loghours sync layer.
//
// It talks to the same REST API as the web front-end, through the same
// caching and polling machinery, which makes it handy for poking at a
// misbehaving backend: watch a sync job converge, force-load a month, or
// check the sync summary without opening a browser.
//
// Configuration comes from LOGHOURS_* environment variables, see the
// timesheet package.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"

	"github.com/loghours/syncbox/timesheet"
)

var application = &cli.Application{
	Name:  "syncwatch",
	Title: "Loghours sync layer diagnostic tool",
	Context: func(ctx context.Context) context.Context {
		ctx = gologger.StdConfig.Use(ctx)
		ctx = logging.SetLevel(ctx, logging.Info)
		return handleInterruption(ctx)
	},
	Commands: []*subcommands.Command{
		subcommands.CmdHelp,
		cmdSummary,
		cmdMonth,
		cmdWatch,
	},
}

func main() {
	os.Exit(subcommands.Run(application, os.Args[1:]))
}

// handleInterruption cancels the context on the first Ctrl+C and force-exits
// on the second.
func handleInterruption(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt)
	go func() {
		interrupted := false
		for range signalC {
			if interrupted {
				os.Exit(1)
			}
			interrupted = true
			cancel()
		}
	}()
	return ctx
}

// loadConfig reads the environment config, logging a failure.
func loadConfig(ctx context.Context) (*timesheet.Config, bool) {
	cfg, err := timesheet.FromEnv()
	if err != nil {
		logging.Errorf(ctx, "%s", err)
		return nil, false
	}
	return cfg, true
}
