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

package rpcinvoker

import (
	"context"
	"testing"
	"time"

	"github.com/e6data/e6data-go-client/internal/strategy"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAuth struct {
	calls int
	err   error
}

func (f *fakeAuth) Reauthenticate(context.Context) error {
	f.calls++
	return f.err
}

type fakeResp struct{ next string }

func (r fakeResp) GetNextStrategy() string { return r.next }

func newTestInvoker(auth Authenticator) *Invoker {
	coord := strategy.New(func(context.Context, strategy.Tag) error { return nil }, 0)
	inv := New(coord, auth, Config{MaxAttempts: 3, Backoff: time.Millisecond})
	inv.backoff = func(time.Duration) {}
	return inv
}

func TestCallSucceedsAndPropagatesHint(t *testing.T) {
	inv := newTestInvoker(&fakeAuth{})
	resp, err := inv.Call(context.Background(), "", func(_ context.Context, h Headers) (ResponseHint, error) {
		require.Equal(t, "blue", h.Strategy)
		return fakeResp{next: "green"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, fakeResp{next: "green"}, resp)

	tag, err := inv.coord.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.Equal(t, strategy.Green, tag, "a new query observes the pending hint")
	require.Equal(t, strategy.Blue, inv.coord.TagForExistingQuery("unregistered"), "hint must stay pending, not become active, until a safe point")
	inv.coord.ApplyPendingAtSafePoint()
	tag, err = inv.coord.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.Equal(t, strategy.Green, tag)
}

func TestCallRetriesOnAuthDenied(t *testing.T) {
	auth := &fakeAuth{}
	inv := newTestInvoker(auth)
	attempts := 0
	_, err := inv.Call(context.Background(), "", func(context.Context, Headers) (ResponseHint, error) {
		attempts++
		if attempts == 1 {
			return nil, status.Error(codes.Unauthenticated, "Access denied")
		}
		return fakeResp{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, auth.calls)
}

func TestCallRetriesOnWrongTagAndInvalidatesCoordinator(t *testing.T) {
	auth := &fakeAuth{}
	inv := newTestInvoker(auth)
	attempts := 0
	_, err := inv.Call(context.Background(), "", func(context.Context, Headers) (ResponseHint, error) {
		attempts++
		if attempts == 1 {
			return nil, status.Error(codes.FailedPrecondition, "status: 456")
		}
		return fakeResp{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, auth.calls)
}

func TestCallSurfacesOtherErrorsUnchanged(t *testing.T) {
	inv := newTestInvoker(&fakeAuth{})
	wantErr := status.Error(codes.Internal, "boom")
	_, err := inv.Call(context.Background(), "", func(context.Context, Headers) (ResponseHint, error) {
		return nil, wantErr
	})
	require.Equal(t, wantErr, err)
}

func TestCallExhaustsRetryBudget(t *testing.T) {
	auth := &fakeAuth{}
	inv := newTestInvoker(auth)
	attempts := 0
	_, err := inv.Call(context.Background(), "", func(context.Context, Headers) (ResponseHint, error) {
		attempts++
		return nil, status.Error(codes.Unauthenticated, "Access denied")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestExistingQueryUsesRegisteredTag(t *testing.T) {
	inv := newTestInvoker(&fakeAuth{})
	inv.coord.RegisterQuery("q1", strategy.Green)
	_, err := inv.Call(context.Background(), "q1", func(_ context.Context, h Headers) (ResponseHint, error) {
		require.Equal(t, "green", h.Strategy)
		return fakeResp{}, nil
	})
	require.NoError(t, err)
}
