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

package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/e6data/e6data-go-client/internal/util/notify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// QueryID identifies a prepared query for the lifetime of its tag
// assignment.
type QueryID string

// ErrWrongTag is the sentinel a DiscoverFunc must return (wrapped or
// bare, checked with errors.Is) when the engine rejects an attempt
// under the probed tag. Any other error aborts discovery outright.
var ErrWrongTag = errors.New("strategy: wrong deployment tag")

// DiscoverFunc performs one authenticate-shaped RPC under the given
// tag, returning ErrWrongTag if the engine rejected that tag.
type DiscoverFunc func(ctx context.Context, tag Tag) error

// Coordinator is the single source of truth for which deployment tag
// an outbound call should carry. It is process-global: a single
// Coordinator should back every Pool/Invoker sharing one engine
// cluster. Cross-process sharing is out of scope for this package;
// hosts that need it must front multiple processes with a shared,
// process-safe store and treat each process's Coordinator as a cache
// of that store (degraded, thread-local-only mode otherwise).
type Coordinator struct {
	discover DiscoverFunc

	// cacheTimeout bounds how long a discovered active tag is trusted
	// without corroboration. Zero disables staleness and matches the
	// spec's literal state machine; a positive value is an additive
	// safety net for long-lived processes where the engine may roll
	// the deployment out from under a session without ever surfacing
	// a wrong-tag error on this process's connections (e.g. all of
	// this process's in-flight queries finished against the old tag
	// and none of the passthrough RPCs noticed).
	cacheTimeout time.Duration

	mu struct {
		sync.Mutex
		active       Tag
		pending      Tag
		discoveredAt time.Time
		queryTags    map[QueryID]Tag
	}

	// activeVar mirrors mu.active for observers that want to watch
	// transitions without polling under the lock.
	activeVar notify.Var[Tag]
}

// New constructs a Coordinator that discovers its tag via discover.
// cacheTimeout of 0 disables time-based staleness.
func New(discover DiscoverFunc, cacheTimeout time.Duration) *Coordinator {
	c := &Coordinator{discover: discover, cacheTimeout: cacheTimeout}
	c.mu.queryTags = make(map[QueryID]Tag)
	return c
}

var (
	defaultOnce sync.Once
	defaultC    *Coordinator
)

// Default returns the process-wide Coordinator singleton, constructing
// it on first use with discover. Later calls ignore discover and
// return the already-constructed instance; callers that need a
// differently configured Coordinator should use New directly instead.
func Default(discover DiscoverFunc, cacheTimeout time.Duration) *Coordinator {
	defaultOnce.Do(func() {
		defaultC = New(discover, cacheTimeout)
	})
	return defaultC
}

// Active reports the current active tag and a channel that closes the
// next time it changes.
func (c *Coordinator) Active() (Tag, <-chan struct{}) {
	return c.activeVar.Get()
}

func (c *Coordinator) setActiveLocked(tag Tag) {
	c.mu.active = tag
	c.mu.discoveredAt = time.Now()
	c.activeVar.Set(tag)
}

// staleLocked reports whether the cached active tag should be treated
// as Unset because it has outlived cacheTimeout. Must be called with
// mu held.
func (c *Coordinator) staleLocked() bool {
	if c.cacheTimeout <= 0 || c.mu.active == Unset {
		return false
	}
	return time.Since(c.mu.discoveredAt) >= c.cacheTimeout
}

// TagForNewQuery returns the tag a not-yet-prepared query should use,
// discovering it if necessary.
func (c *Coordinator) TagForNewQuery(ctx context.Context) (Tag, error) {
	c.mu.Lock()
	if pending := c.mu.pending; pending != Unset {
		c.mu.Unlock()
		return pending, nil
	}
	if active := c.mu.active; active != Unset && !c.staleLocked() {
		c.mu.Unlock()
		return active, nil
	}
	c.mu.Unlock()
	return c.runDiscovery(ctx)
}

// runDiscovery probes candidate tags in order. It must never hold c.mu
// while calling discover: discover ultimately reaches
// Session.authenticate, which takes the Session's own lock, and
// spec.md §5 fixes the acquisition order as Pool → Session →
// Coordinator — holding the Coordinator's lock into a call that takes
// the Session's lock nests them in reverse. Instead, c.mu is taken only
// to read the cached value before probing and to publish a winning tag
// after, the same drop-the-lock-before-calling-out shape Pool.create
// and Pool.ReauthenticateAll use around their own calls into Session.
func (c *Coordinator) runDiscovery(ctx context.Context) (Tag, error) {
	c.mu.Lock()
	if active := c.mu.active; active != Unset && !c.staleLocked() {
		c.mu.Unlock()
		return active, nil
	}
	c.mu.Unlock()

	var lastErr error
	for _, tag := range order {
		err := c.discover(ctx, tag)
		if err == nil {
			c.mu.Lock()
			// Another caller may have published a still-fresh tag while
			// this probe was in flight; don't clobber it with a redundant
			// success for the same (or a stale) candidate.
			if active := c.mu.active; active == Unset || c.staleLocked() {
				c.setActiveLocked(tag)
			}
			result := c.mu.active
			c.mu.Unlock()
			return result, nil
		}
		if !errors.Is(err, ErrWrongTag) {
			return Unset, err
		}
		lastErr = err
	}
	return Unset, lastErr
}

// TagForExistingQuery returns the tag registered for queryID, falling
// back to the active tag only if no registration exists. Callers that
// hold a queryID must always use this, never TagForNewQuery.
func (c *Coordinator) TagForExistingQuery(queryID QueryID) Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tag, ok := c.mu.queryTags[queryID]; ok {
		return tag
	}
	return c.mu.active
}

// RegisterQuery records the tag a query was prepared under.
func (c *Coordinator) RegisterQuery(queryID QueryID, tag Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.queryTags[queryID] = tag
}

// ForgetQuery removes a query's tag registration. Callers invoke this
// once the query has been cleared or cancelled.
func (c *Coordinator) ForgetQuery(queryID QueryID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.mu.queryTags, queryID)
}

// ObserveResponseHint records a "next-tag" hint surfaced by a response.
// The hint becomes pending immediately but does not affect active
// until ApplyPendingAtSafePoint runs, so in-flight queries keep using
// their registered tag.
func (c *Coordinator) ObserveResponseHint(hint Tag) {
	if hint == Unset {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if hint == c.mu.active {
		return
	}
	if c.mu.pending != hint {
		log.WithField("tag", hint).Trace("strategy: observed pending hint")
	}
	c.mu.pending = hint
}

// ApplyPendingAtSafePoint promotes pending to active. Callers invoke
// this after clear/cancel, the only points queries are guaranteed not
// to observe a tag change mid-flight.
func (c *Coordinator) ApplyPendingAtSafePoint() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.pending == Unset {
		return
	}
	c.setActiveLocked(c.mu.pending)
	c.mu.pending = Unset
}

// Invalidate clears both active and pending, forcing rediscovery on
// the next TagForNewQuery call. Invoked by the RPC Invoker on a
// distinguished wrong-tag error.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.pending = Unset
	c.setActiveLocked(Unset)
}
