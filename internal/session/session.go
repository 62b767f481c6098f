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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/e6data/e6data-go-client/internal/enginepb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// Conn is the subset of *grpc.ClientConn the Manager relies on. It's
// exported so that other packages' tests (e.g. the connection pool's)
// can substitute a fake implementation via NewWithConn instead of
// dialing a real transport.
type Conn interface {
	enginepb.Invoker
	Close() error
	GetState() connectivity.State
}

type clientConn = Conn

// Manager owns exactly one *grpc.ClientConn at a time, along with the
// session id that the channel's credentials are currently good for.
// Re-authentication is serialized under mu: concurrent Reauthenticate
// callers each run their own authenticate RPC, one after another; they
// are not coalesced into a single call.
type Manager struct {
	cfg Config

	mu struct {
		sync.Mutex
		conn      clientConn
		sessionID string
	}
}

// New dials a channel against cfg immediately. Preflight must already
// have been run on cfg.
func New(cfg Config) (*Manager, error) {
	m := &Manager{cfg: cfg}
	conn, err := m.dial()
	if err != nil {
		return nil, err
	}
	m.mu.conn = conn
	return m, nil
}

func (m *Manager) dial() (*grpc.ClientConn, error) {
	creds, err := buildCredentials(&m.cfg)
	if err != nil {
		return nil, err
	}

	kp := keepalive.ClientParameters{
		Time:                m.cfg.KeepalivePingInterval,
		Timeout:             m.cfg.KeepaliveIdle,
		PermitWithoutStream: m.cfg.PermitKeepaliveWithoutCalls,
	}

	conn, err := grpc.NewClient(m.cfg.Endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(kp),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(m.cfg.MaxInboundMessageBytes),
			grpc.MaxCallSendMsgSize(m.cfg.MaxOutboundMessageBytes),
		),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "session: dial %s", m.cfg.Endpoint)
	}
	return conn, nil
}

// NewWithConn builds a Manager around an already-established
// connection, bypassing dial. Used by tests to substitute a fake Conn.
func NewWithConn(cfg Config, conn Conn) *Manager {
	m := &Manager{cfg: cfg}
	m.mu.conn = conn
	return m
}

// Conn returns the current underlying connection. The returned value
// is only valid until the next Reauthenticate.
func (m *Manager) Conn() enginepb.Invoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.conn
}

// SessionID returns the currently authenticated session id.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.sessionID
}

// Authenticate performs the initial authenticate RPC, carrying no
// strategy header of its own (used once the strategy coordinator has
// already settled on an active tag and attaches it elsewhere).
func (m *Manager) Authenticate(ctx context.Context) error {
	return m.authenticate(ctx, "")
}

// Reauthenticate re-runs authenticate, serialized against concurrent
// callers via mu: each caller waits for the lock and then performs its
// own RPC. Concurrent calls are not coalesced into one.
func (m *Manager) Reauthenticate(ctx context.Context) error {
	return m.authenticate(ctx, "")
}

// AuthenticateForTag performs the authenticate RPC with an explicit
// strategy header, used by strategy discovery to probe a candidate
// deployment tag before any query has registered one.
func (m *Manager) AuthenticateForTag(ctx context.Context, tag string) error {
	return m.authenticate(ctx, tag)
}

func (m *Manager) authenticate(ctx context.Context, strategyTag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := &enginepb.AuthenticateRequest{User: m.cfg.User, Token: m.cfg.Token}
	resp := &enginepb.AuthenticateResponse{}

	timeoutCtx, cancel := context.WithTimeout(ctx, m.cfg.PrepareTimeout)
	defer cancel()
	if strategyTag != "" {
		timeoutCtx = metadata.AppendToOutgoingContext(timeoutCtx, "strategy", strategyTag)
	}

	if err := m.mu.conn.Invoke(timeoutCtx, enginepb.MethodAuthenticate, req, resp); err != nil {
		return errors.Wrap(err, "session: authenticate")
	}
	m.mu.sessionID = resp.SessionID
	log.WithField("session_id", resp.SessionID).Debug("session: authenticated")
	return nil
}

// Close tears down the underlying channel.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.conn == nil {
		return nil
	}
	return m.mu.conn.Close()
}

// Healthy reports whether the underlying channel's transport appears
// usable. It is a cheap liveness probe, not a guarantee.
func (m *Manager) Healthy(d time.Duration) bool {
	m.mu.Lock()
	conn := m.mu.conn
	m.mu.Unlock()
	if conn == nil {
		return false
	}
	switch conn.GetState() {
	case connectivity.Shutdown, connectivity.TransientFailure:
		return false
	default:
		return true
	}
}
