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
	"time"

	"github.com/caarlos0/env/v11"

	"go.chromium.org/luci/common/errors"
)

// Config holds the client settings, populated from the environment.
type Config struct {
	// BaseURL is the root of the Loghours REST API.
	BaseURL string `env:"LOGHOURS_BASE_URL" envDefault:"http://localhost:8080"`

	// Token is the bearer token attached to every request; empty means
	// anonymous.
	Token string `env:"LOGHOURS_TOKEN"`

	// RequestTimeout bounds one HTTP request.
	RequestTimeout time.Duration `env:"LOGHOURS_REQUEST_TIMEOUT" envDefault:"30s"`

	// PollInterval is the delay between progress fetches of one sync job.
	PollInterval time.Duration `env:"LOGHOURS_POLL_INTERVAL" envDefault:"3s"`

	// RefreshInterval is the delay between best-effort summary refreshes.
	RefreshInterval time.Duration `env:"LOGHOURS_REFRESH_INTERVAL" envDefault:"30s"`
}

// FromEnv reads Config from LOGHOURS_* environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Fmt("parsing loghours config: %w", err)
	}
	return &cfg, nil
}
