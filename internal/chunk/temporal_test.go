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

package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloorDivModPositive(t *testing.T) {
	q, r := floorDivMod(7, 2)
	require.Equal(t, int64(3), q)
	require.Equal(t, int64(1), r)
}

func TestFloorDivModNegativeKeepsRemainderNonNegative(t *testing.T) {
	q, r := floorDivMod(-1, 1_000_000)
	require.Equal(t, int64(-1), q)
	require.Equal(t, int64(999_999), r)
}

func TestFloorDivModExact(t *testing.T) {
	q, r := floorDivMod(-2_000_000, 1_000_000)
	require.Equal(t, int64(-2), q)
	require.Equal(t, int64(0), r)
}

func TestFormatDateEpoch(t *testing.T) {
	require.Equal(t, "1970-01-01", formatDate(0))
}

func TestFormatDatetimeBeforeEpoch(t *testing.T) {
	// One microsecond before the epoch falls on the prior UTC day.
	require.Equal(t, "1969-12-31T23:59:59.999Z", formatDatetime(-1))
}

func TestFormatTimestampTZFallsBackToUTCOnUnknownZone(t *testing.T) {
	require.Equal(t, "1970-01-01T00:00:00.000Z", formatTimestampTZ(0, "Not/AZone"))
}

func TestFormatTimestampTZAppliesNamedZone(t *testing.T) {
	got := formatTimestampTZ(0, "America/New_York")
	require.Equal(t, "1969-12-31T19:00:00.000-05:00", got)
}

func TestFormatInt96MatchesEpochMicros(t *testing.T) {
	// Julian day 2440588 is the Unix epoch; zero nanos-of-day is midnight.
	require.Equal(t, "1970-01-01T00:00:00.000Z", formatInt96(julianDayUnixEpoch, 0))
}
