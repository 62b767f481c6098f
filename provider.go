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
	"context"
	"sync"

	"github.com/e6data/e6data-go-client/internal/pool"
	"github.com/e6data/e6data-go-client/internal/rpcinvoker"
	"github.com/e6data/e6data-go-client/internal/session"
	"github.com/e6data/e6data-go-client/internal/strategy"
)

// provider hand-assembles the construction graph a generated
// dependency-injection provider would otherwise produce: one
// Coordinator per Client, a Pool of Session Managers each dialed
// against cfg.Session, and the single Invoker every RPC passes
// through. There is no build-time code generation step here; this is
// the explicit, by-hand equivalent.
type provider struct {
	cfg     Config
	coord   *strategy.Coordinator
	invoker *rpcinvoker.Invoker
	pool    *pool.Pool
}

func newProvider(ctx context.Context, cfg Config) (*provider, error) {
	p := &provider{cfg: cfg}

	// The bootstrap channel is dialed once and reused across every
	// candidate-tag probe discovery makes: only the "strategy" header
	// on the authenticate call varies per attempt, not the transport.
	// On success it becomes the pool's first resident channel, so
	// acquire() doesn't immediately need to dial a second connection.
	bootstrap, err := session.New(cfg.Session)
	if err != nil {
		return nil, err
	}
	var firstSessionMu sync.Mutex
	firstSession := bootstrap

	discover := func(discoverCtx context.Context, tag strategy.Tag) error {
		if err := bootstrap.AuthenticateForTag(discoverCtx, tag.String()); err != nil {
			if rpcinvoker.IsWrongTag(err) {
				return strategy.ErrWrongTag
			}
			return err
		}
		return nil
	}

	p.coord = strategy.New(discover, cfg.StrategyCacheTimeout)
	if _, err := p.coord.TagForNewQuery(ctx); err != nil {
		_ = bootstrap.Close()
		return nil, err
	}

	factory := func(ctx context.Context) (*session.Manager, error) {
		firstSessionMu.Lock()
		mgr := firstSession
		firstSession = nil
		firstSessionMu.Unlock()
		if mgr != nil {
			return mgr, nil
		}
		mgr, err := session.New(cfg.Session)
		if err != nil {
			return nil, err
		}
		if err := mgr.Authenticate(ctx); err != nil {
			_ = mgr.Close()
			return nil, err
		}
		return mgr, nil
	}

	channelPool, err := pool.New(cfg.Pool, factory)
	if err != nil {
		return nil, err
	}
	p.pool = channelPool

	// The invoker's Authenticator re-authenticates every resident
	// channel in the pool (see poolAuthenticator), since a retried call
	// has no handle on which channel carried the failed attempt.
	p.invoker = rpcinvoker.New(p.coord, poolAuthenticator{pool: channelPool}, cfg.Invoker)

	return p, nil
}

// poolAuthenticator re-authenticates every resident and in-flight
// channel's session after a wrong-tag or auth-denied error, since the
// invoker has no single Manager to target: the error may have arrived
// on any pooled channel, and every other channel's session id is
// suspect under the same stale tag.
type poolAuthenticator struct {
	pool *pool.Pool
}

func (a poolAuthenticator) Reauthenticate(ctx context.Context) error {
	return a.pool.ReauthenticateAll(ctx)
}

func (p *provider) Close() error {
	return p.pool.Close()
}
