// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package e6data

import (
	"os"
	"strconv"
	"time"

	"github.com/e6data/e6data-go-client/internal/pool"
	"github.com/e6data/e6data-go-client/internal/rpcinvoker"
	"github.com/e6data/e6data-go-client/internal/session"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is the user-visible configuration for a Client: connection
// target and credentials, TLS and channel options, retry budget, pool
// bounds, and the strategy coordinator's rediscovery TTL.
type Config struct {
	Session  session.Config
	Pool     pool.Config
	Invoker  rpcinvoker.Config
	StrategyCacheTimeout time.Duration
}

// Bind registers every flag this client recognizes, seeded from the
// E6DATA_* environment variables where set. Flags always take
// precedence over environment variables when both are supplied, since
// pflag parses after these defaults are computed.
func (c *Config) Bind(flags *pflag.FlagSet) {
	c.Session.Bind(flags)

	flags.IntVar(&c.Invoker.MaxAttempts, "maxRetryAttempts",
		envInt("E6DATA_MAX_RETRY_ATTEMPTS", rpcinvoker.DefaultMaxAttempts),
		"maximum attempts for a single logical call before its error is surfaced")
	flags.DurationVar(&c.Invoker.Backoff, "retryBackoff",
		envSeconds("E6DATA_RETRY_BACKOFF", rpcinvoker.DefaultBackoff),
		"delay between retry attempts")

	flags.IntVar(&c.Pool.Min, "poolMin", envInt("E6DATA_POOL_MIN", 0),
		"channels kept warm in the connection pool")
	flags.IntVar(&c.Pool.Max, "poolMax", envInt("E6DATA_POOL_MAX", 4),
		"hard ceiling on resident pool channels")
	flags.IntVar(&c.Pool.Overflow, "poolOverflow", envInt("E6DATA_POOL_OVERFLOW", 0),
		"additional ephemeral channels allowed beyond poolMax")
	flags.DurationVar(&c.Pool.RecycleAge, "poolRecycle", envSeconds("E6DATA_POOL_RECYCLE", time.Hour),
		"maximum channel age before it is recycled on release")

	flags.DurationVar(&c.StrategyCacheTimeout, "strategyCacheTimeout",
		envSeconds("E6DATA_STRATEGY_CACHE_TIMEOUT", 300*time.Second),
		"how long a discovered deployment tag is trusted before rediscovery; 0 disables staleness")
}

// Preflight validates and fills defaults across every embedded config.
func (c *Config) Preflight() error {
	if err := c.Session.Preflight(); err != nil {
		return errors.Wrap(err, "session config")
	}
	if err := c.Pool.Preflight(); err != nil {
		return errors.Wrap(err, "pool config")
	}
	if c.Invoker.MaxAttempts <= 0 {
		c.Invoker.MaxAttempts = rpcinvoker.DefaultMaxAttempts
	}
	if c.Invoker.Backoff <= 0 {
		c.Invoker.Backoff = rpcinvoker.DefaultBackoff
	}
	if c.StrategyCacheTimeout < 0 {
		return errors.New("strategyCacheTimeout must be >= 0")
	}
	return nil
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(name string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Second))
}
