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

package pool

import (
	"github.com/e6data/e6data-go-client/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquireDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pool_acquire_duration_seconds",
		Help:    "time spent in Acquire, including any wait on the waiter queue",
		Buckets: metrics.LatencyBuckets,
	})
	acquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_acquires_total",
		Help: "total number of successful Acquire calls",
	})
	creationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_channel_creations_total",
		Help: "total number of channels dialed and authenticated",
	})
	creationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_channel_creation_failures_total",
		Help: "total number of failed channel dial/authenticate attempts",
	})
	exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_exhausted_total",
		Help: "total number of Acquire calls that timed out waiting for a channel",
	})
)
