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
	"sync/atomic"
	"testing"
	"time"

	"github.com/e6data/e6data-go-client/internal/enginepb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

type fakeConn struct {
	invokeCalls int32
	state       connectivity.State
	authErr     error
	sessionID   string
}

func (f *fakeConn) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	atomic.AddInt32(&f.invokeCalls, 1)
	if method != enginepb.MethodAuthenticate {
		return errors.Errorf("unexpected method %s", method)
	}
	if f.authErr != nil {
		return f.authErr
	}
	reply.(*enginepb.AuthenticateResponse).SessionID = f.sessionID
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("fakeConn: streaming not supported")
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) GetState() connectivity.State { return f.state }

func testConfig() Config {
	cfg := Config{Endpoint: "engine:1234", User: "alice", Token: "tok", PrepareTimeout: time.Second}
	if err := cfg.Preflight(); err != nil {
		panic(err)
	}
	return cfg
}

func TestAuthenticateSetsSessionID(t *testing.T) {
	cfg := testConfig()
	fc := &fakeConn{sessionID: "sess-1", state: connectivity.Ready}
	m := NewWithConn(cfg, fc)

	require.NoError(t, m.Authenticate(context.Background()))
	require.Equal(t, "sess-1", m.SessionID())
	require.EqualValues(t, 1, fc.invokeCalls)
}

func TestReauthenticateRefreshesSessionID(t *testing.T) {
	cfg := testConfig()
	fc := &fakeConn{sessionID: "sess-1", state: connectivity.Ready}
	m := NewWithConn(cfg, fc)
	require.NoError(t, m.Authenticate(context.Background()))

	fc.sessionID = "sess-2"
	require.NoError(t, m.Reauthenticate(context.Background()))
	require.Equal(t, "sess-2", m.SessionID())
}

func TestAuthenticateSurfacesError(t *testing.T) {
	cfg := testConfig()
	fc := &fakeConn{authErr: errors.New("boom"), state: connectivity.Ready}
	m := NewWithConn(cfg, fc)

	err := m.Authenticate(context.Background())
	require.Error(t, err)
}

func TestHealthyReflectsConnState(t *testing.T) {
	cfg := testConfig()
	fc := &fakeConn{state: connectivity.TransientFailure}
	m := NewWithConn(cfg, fc)
	require.False(t, m.Healthy(time.Second))

	fc.state = connectivity.Ready
	require.True(t, m.Healthy(time.Second))
}
