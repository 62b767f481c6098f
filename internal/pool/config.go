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

// Package pool implements a bounded, thread-affine pool of
// session-manager-backed channels to the query engine.
package pool

import (
	"context"
	"time"

	"github.com/e6data/e6data-go-client/internal/session"
	"github.com/pkg/errors"
)

// Factory dials and authenticates one new channel.
type Factory func(ctx context.Context) (*session.Manager, error)

// Config is the pool's fixed menu of options. PrePing adds no check of
// its own: every health check already runs the transport-state probe
// (session.Manager.Healthy) that PrePing selects, so the pool behaves
// the same whether PrePing is set or not.
type Config struct {
	Min            int
	Max            int
	Overflow       int
	AcquireTimeout time.Duration
	RecycleAge     time.Duration
	PrePing        bool
}

// Preflight validates and fills defaults, matching the ambient
// Config/Preflight convention used throughout this library.
func (c *Config) Preflight() error {
	if c.Max < 1 {
		return errors.New("pool: Max must be >= 1")
	}
	if c.Min < 0 {
		return errors.New("pool: Min must be >= 0")
	}
	if c.Min > c.Max {
		return errors.New("pool: Min must be <= Max")
	}
	if c.Overflow < 0 {
		return errors.New("pool: Overflow must be >= 0")
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.RecycleAge <= 0 {
		c.RecycleAge = time.Hour
	}
	return nil
}
