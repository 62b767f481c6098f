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
	"time"

	"github.com/e6data/e6data-go-client/internal/session"
)

// PooledChannel is one session-manager-backed channel resident in (or
// briefly owned outside) the pool. Always handed out and returned by
// pointer; a copy would let two callers race over the same live
// connection's inUse/owner bookkeeping.
type PooledChannel struct {
	Manager   *session.Manager
	createdAt time.Time
	lastUsed  time.Time
	inUse     bool
	owner     CallerKey
	hasOwner  bool
	ephemeral bool

	_ noCopy
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func newChannel(sm *session.Manager, ephemeral bool) *PooledChannel {
	now := time.Now()
	return &PooledChannel{Manager: sm, createdAt: now, lastUsed: now, ephemeral: ephemeral}
}

// overAge reports whether the channel has outlived recycleAge.
func (c *PooledChannel) overAge(recycleAge time.Duration) bool {
	return time.Since(c.createdAt) >= recycleAge
}
