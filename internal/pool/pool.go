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
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrPoolExhausted is returned by Acquire when no channel becomes
// available within Config.AcquireTimeout.
var ErrPoolExhausted = errors.New("pool: exhausted")

// ErrPoolClosed is returned to any waiter when the pool is closed out
// from under it, and by Acquire/Release called after Close.
var ErrPoolClosed = errors.New("pool: closed")

// Stats is a read-only snapshot of pool occupancy.
type Stats struct {
	Active         int
	Idle           int
	TotalCreated   int64
	FailedCreations int64
	WaitersNow     int
	TotalAcquires  int64
}

type waiter struct {
	ch chan *PooledChannel
}

// Pool is a bounded, thread-affine pool of channels. The zero value is
// not usable; construct with New.
type Pool struct {
	cfg     Config
	factory Factory

	mu struct {
		sync.Mutex
		resident     []*PooledChannel // MRU order: index 0 is least recently used.
		perCaller    map[CallerKey]*PooledChannel
		waiters      []*waiter
		overflowUsed int
		closed       bool

		totalCreated    int64
		failedCreations int64
		totalAcquires   int64
	}
}

// New constructs a Pool. It does not eagerly create Min channels;
// they are created lazily on first demand, matching the teacher's
// lazy-connect convention.
func New(cfg Config, factory Factory) (*Pool, error) {
	if err := cfg.Preflight(); err != nil {
		return nil, err
	}
	p := &Pool{cfg: cfg, factory: factory}
	p.mu.perCaller = make(map[CallerKey]*PooledChannel)
	return p, nil
}

// Acquire obtains a channel for caller, following the five-step ladder
// in order: affinity, idle reuse, create-under-max, overflow, FIFO wait.
func (p *Pool) Acquire(ctx context.Context, caller CallerKey) (*PooledChannel, error) {
	start := time.Now()
	defer func() { acquireDuration.Observe(time.Since(start).Seconds()) }()

	pc, err := p.acquire(ctx, caller)
	if err != nil {
		return nil, err
	}
	acquiresTotal.Inc()
	return pc, nil
}

func (p *Pool) acquire(ctx context.Context, caller CallerKey) (*PooledChannel, error) {
	p.mu.Lock()
	if p.mu.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.totalAcquires++

	// Step 1: affinity.
	if pc, ok := p.mu.perCaller[caller]; ok && !pc.inUse {
		if p.healthyLocked(pc) {
			pc.inUse = true
			p.mu.Unlock()
			return pc, nil
		}
		delete(p.mu.perCaller, caller)
	}

	// Step 2: idle resident reuse, most-recently-used first.
	for i := len(p.mu.resident) - 1; i >= 0; i-- {
		pc := p.mu.resident[i]
		if pc.inUse {
			continue
		}
		if !p.healthyLocked(pc) {
			p.removeResidentLocked(i)
			p.closeDiscard(pc)
			continue
		}
		pc.inUse = true
		pc.owner = caller
		pc.hasOwner = true
		p.mu.perCaller[caller] = pc
		p.mu.Unlock()
		return pc, nil
	}

	// Step 3: create under max.
	if len(p.mu.resident) < p.cfg.Max {
		p.mu.Unlock()
		pc, err := p.create(ctx, false)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		if p.mu.closed {
			p.mu.Unlock()
			p.closeDiscard(pc)
			return nil, ErrPoolClosed
		}
		pc.inUse = true
		pc.owner = caller
		pc.hasOwner = true
		p.mu.resident = append(p.mu.resident, pc)
		p.mu.perCaller[caller] = pc
		p.mu.Unlock()
		return pc, nil
	}

	// Step 4: overflow.
	if p.mu.overflowUsed < p.cfg.Overflow {
		p.mu.overflowUsed++
		p.mu.Unlock()
		pc, err := p.create(ctx, true)
		if err != nil {
			p.mu.Lock()
			p.mu.overflowUsed--
			p.mu.Unlock()
			return nil, err
		}
		pc.inUse = true
		return pc, nil
	}

	// Step 5: FIFO waiter queue.
	w := &waiter{ch: make(chan *PooledChannel, 1)}
	p.mu.waiters = append(p.mu.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case pc, ok := <-w.ch:
		if !ok {
			return nil, ErrPoolClosed
		}
		pc.owner = caller
		pc.hasOwner = true
		p.mu.Lock()
		p.mu.perCaller[caller] = pc
		p.mu.Unlock()
		return pc, nil
	case <-timer.C:
		p.removeWaiter(w)
		exhaustedTotal.Inc()
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		p.removeWaiter(w)
		return nil, ctx.Err()
	}
}

func (p *Pool) removeWaiter(target *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.mu.waiters {
		if w == target {
			p.mu.waiters = append(p.mu.waiters[:i], p.mu.waiters[i+1:]...)
			return
		}
	}
}

// healthyLocked evaluates transport-open and age; must be called with
// mu held.
func (p *Pool) healthyLocked(pc *PooledChannel) bool {
	if pc.overAge(p.cfg.RecycleAge) {
		return false
	}
	if p.cfg.PrePing && !pc.Manager.Healthy(time.Second) {
		return false
	}
	return pc.Manager.Healthy(time.Second)
}

func (p *Pool) removeResidentLocked(i int) {
	p.mu.resident = append(p.mu.resident[:i], p.mu.resident[i+1:]...)
}

func (p *Pool) create(ctx context.Context, ephemeral bool) (*PooledChannel, error) {
	sm, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.mu.failedCreations++
		p.mu.Unlock()
		creationFailuresTotal.Inc()
		return nil, errors.Wrap(err, "pool: create channel")
	}
	p.mu.Lock()
	p.mu.totalCreated++
	p.mu.Unlock()
	creationsTotal.Inc()
	return newChannel(sm, ephemeral), nil
}

func (p *Pool) closeDiscard(pc *PooledChannel) {
	if err := pc.Manager.Close(); err != nil {
		log.WithError(err).Warn("pool: error closing discarded channel")
	}
}

// Release returns pc to the pool, following the three-step ladder:
// ephemeral channels are always closed and discarded; unhealthy or
// over-age channels are closed, removed, and optionally replaced to
// maintain Min; otherwise the channel goes idle and wakes one waiter.
func (p *Pool) Release(pc *PooledChannel) {
	if pc.ephemeral {
		p.mu.Lock()
		p.mu.overflowUsed--
		p.mu.Unlock()
		p.closeDiscard(pc)
		return
	}

	p.mu.Lock()
	if p.mu.closed {
		p.mu.Unlock()
		p.closeDiscard(pc)
		return
	}

	if pc.overAge(p.cfg.RecycleAge) || !pc.Manager.Healthy(time.Second) {
		idx := p.indexOfLocked(pc)
		if idx >= 0 {
			p.removeResidentLocked(idx)
		}
		needReplacement := len(p.mu.resident) < p.cfg.Min
		p.mu.Unlock()
		p.closeDiscard(pc)
		if needReplacement {
			p.replenish()
		}
		return
	}

	pc.inUse = false
	pc.lastUsed = time.Now()
	p.moveToMRUEndLocked(pc)

	if len(p.mu.waiters) > 0 {
		w := p.mu.waiters[0]
		p.mu.waiters = p.mu.waiters[1:]
		pc.inUse = true
		p.mu.Unlock()
		w.ch <- pc
		return
	}
	p.mu.Unlock()
}

func (p *Pool) indexOfLocked(pc *PooledChannel) int {
	for i, r := range p.mu.resident {
		if r == pc {
			return i
		}
	}
	return -1
}

func (p *Pool) moveToMRUEndLocked(pc *PooledChannel) {
	idx := p.indexOfLocked(pc)
	if idx < 0 {
		return
	}
	p.mu.resident = append(p.mu.resident[:idx], p.mu.resident[idx+1:]...)
	p.mu.resident = append(p.mu.resident, pc)
}

// replenish creates a new resident channel to restore Min occupancy
// after an unhealthy channel is discarded. It runs synchronously inside
// Release, after the pool lock has been dropped. Failures are logged,
// not propagated, since Release returns no error.
func (p *Pool) replenish() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
	defer cancel()
	pc, err := p.create(ctx, false)
	if err != nil {
		log.WithError(err).Warn("pool: replenish failed")
		return
	}
	p.mu.Lock()
	if p.mu.closed || len(p.mu.resident) >= p.cfg.Max {
		p.mu.Unlock()
		p.closeDiscard(pc)
		return
	}
	p.mu.resident = append(p.mu.resident, pc)
	p.mu.Unlock()
}

// Close drains every resident channel and fails every waiter with
// ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.mu.closed {
		p.mu.Unlock()
		return nil
	}
	p.mu.closed = true
	resident := p.mu.resident
	p.mu.resident = nil
	waiters := p.mu.waiters
	p.mu.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w.ch)
	}
	var firstErr error
	for _, pc := range resident {
		if err := pc.Manager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReauthenticateAll re-runs authentication on every resident channel's
// Manager. It's the pool-wide analog of Session Manager's own
// Reauthenticate, used when an auth-denied or wrong-tag error can't be
// attributed to a single channel because the invoker has no handle on
// which channel made the failing call — every resident session's
// credentials are suspect under the same stale tag, so all of them are
// refreshed. In-flight (checked-out) channels are reauthenticated too;
// their Manager's own mutex serializes this against any call they are
// mid-RPC on.
func (p *Pool) ReauthenticateAll(ctx context.Context) error {
	p.mu.Lock()
	managers := make([]interface{ Reauthenticate(context.Context) error }, 0, len(p.mu.resident))
	for _, pc := range p.mu.resident {
		managers = append(managers, pc.Manager)
	}
	p.mu.Unlock()

	var firstErr error
	for _, mgr := range managers {
		if err := mgr.Reauthenticate(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	active, idle := 0, 0
	for _, pc := range p.mu.resident {
		if pc.inUse {
			active++
		} else {
			idle++
		}
	}
	return Stats{
		Active:          active,
		Idle:            idle,
		TotalCreated:    p.mu.totalCreated,
		FailedCreations: p.mu.failedCreations,
		WaitersNow:      len(p.mu.waiters),
		TotalAcquires:   p.mu.totalAcquires,
	}
}
