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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestActiveNotifiesOnChange(t *testing.T) {
	c := New(func(_ context.Context, _ Tag) error { return nil }, 0)

	tag, changed := c.Active()
	require.Equal(t, Unset, tag)

	_, err := c.TagForNewQuery(context.Background())
	require.NoError(t, err)

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("Active's channel did not close after discovery")
	}

	tag, _ = c.Active()
	require.Equal(t, Blue, tag)
}

func TestDiscoveryFallsThroughToGreen(t *testing.T) {
	var calls int32
	c := New(func(_ context.Context, tag Tag) error {
		atomic.AddInt32(&calls, 1)
		if tag == Blue {
			return ErrWrongTag
		}
		return nil
	}, 0)

	tag, err := c.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.Equal(t, Green, tag)
	require.EqualValues(t, 2, calls)
}

func TestDiscoveryPropagatesNonWrongTagError(t *testing.T) {
	boom := errNotWrongTag{}
	c := New(func(_ context.Context, _ Tag) error {
		return boom
	}, 0)

	_, err := c.TagForNewQuery(context.Background())
	require.ErrorIs(t, err, boom)
}

type errNotWrongTag struct{}

func (errNotWrongTag) Error() string { return "boom" }

func TestDiscoveryCachesAfterFirstSuccess(t *testing.T) {
	var calls int32
	c := New(func(_ context.Context, tag Tag) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, 0)

	for i := 0; i < 5; i++ {
		tag, err := c.TagForNewQuery(context.Background())
		require.NoError(t, err)
		require.Equal(t, Blue, tag)
	}
	require.EqualValues(t, 1, calls)
}

func TestConcurrentDiscoveryConverges(t *testing.T) {
	var calls int32
	c := New(func(_ context.Context, tag Tag) error {
		atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return nil
	}, 0)

	var wg sync.WaitGroup
	results := make(chan Tag, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tag, err := c.TagForNewQuery(context.Background())
			require.NoError(t, err)
			results <- tag
		}()
	}
	wg.Wait()
	close(results)

	for tag := range results {
		require.Equal(t, Blue, tag)
	}
}

func TestRegisteredQueryKeepsItsTagAcrossHint(t *testing.T) {
	c := New(func(_ context.Context, _ Tag) error { return nil }, 0)
	tag, err := c.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.Equal(t, Blue, tag)

	c.RegisterQuery("q1", tag)
	c.ObserveResponseHint(Green)

	// In-flight query still sees its registered tag.
	require.Equal(t, Blue, c.TagForExistingQuery("q1"))
	// But a brand-new query now observes the pending hint.
	newTag, err := c.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.Equal(t, Green, newTag)

	c.ForgetQuery("q1")
	c.ApplyPendingAtSafePoint()
	require.Equal(t, Green, c.TagForExistingQuery("q1"))
}

func TestInvalidateForcesRediscovery(t *testing.T) {
	var calls int32
	c := New(func(_ context.Context, _ Tag) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, 0)

	_, err := c.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, calls)

	c.Invalidate()

	_, err = c.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, calls)
}

func TestCacheTimeoutTriggersRediscovery(t *testing.T) {
	var calls int32
	c := New(func(_ context.Context, _ Tag) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, 10*time.Millisecond)

	_, err := c.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, calls)

	time.Sleep(20 * time.Millisecond)

	_, err = c.TagForNewQuery(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, calls)
}

func TestParseTagRejectsUnknownWithoutAborting(t *testing.T) {
	tag, ok := ParseTag("purple")
	require.False(t, ok)
	require.Equal(t, Unset, tag)

	tag, ok = ParseTag("BLUE")
	require.True(t, ok)
	require.Equal(t, Blue, tag)
}
