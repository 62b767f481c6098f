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

import "time"

// julianDayUnixEpoch is the conventional Julian day number of the Unix
// epoch (1970-01-01T00:00:00Z).
const julianDayUnixEpoch = 2440588

// floorDivMod splits a possibly-negative numerator into a floor
// quotient and a non-negative remainder, matching the engine's
// floor-div/floor-mod semantics for epoch-microsecond decoding.
func floorDivMod(n, d int64) (quotient, remainder int64) {
	quotient = n / d
	remainder = n % d
	if remainder < 0 {
		remainder += d
		quotient--
	}
	return quotient, remainder
}

// timeFromEpochMicros converts epoch-microseconds to a UTC time.Time.
func timeFromEpochMicros(micros int64) time.Time {
	seconds, remainderMicros := floorDivMod(micros, 1_000_000)
	return time.Unix(seconds, remainderMicros*1000).UTC()
}

// formatDate renders epoch-microseconds as an ISO calendar date in UTC.
func formatDate(micros int64) string {
	return timeFromEpochMicros(micros).Format("2006-01-02")
}

// formatDatetime renders epoch-microseconds as ISO-8601 with
// millisecond precision in UTC.
func formatDatetime(micros int64) string {
	return timeFromEpochMicros(micros).Format("2006-01-02T15:04:05.000Z")
}

// formatTimestampTZ renders epoch-microseconds in the named zone,
// falling back to UTC if the zone is empty or unrecognized.
func formatTimestampTZ(micros int64, zone string) string {
	loc := time.UTC
	if zone != "" {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}
	return timeFromEpochMicros(micros).In(loc).Format("2006-01-02T15:04:05.000Z07:00")
}

// formatInt96 renders a Julian-day + nanoseconds-of-day pair (the
// metadata-stream INT96 encoding) as an ISO-8601 timestamp with
// millisecond precision in UTC. nanosOfDay is divided by 1000 to
// yield microseconds per the wire contract.
func formatInt96(julianDay int32, nanosOfDay int64) string {
	days := int64(julianDay) - julianDayUnixEpoch
	micros := days*86_400_000_000 + nanosOfDay/1000
	return formatDatetime(micros)
}
