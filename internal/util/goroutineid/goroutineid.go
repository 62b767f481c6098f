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

// Package goroutineid extracts a best-effort identifier for the
// calling goroutine. It exists solely to give thread-per-request hosts
// a default connection-pool affinity key; it is never load-bearing for
// correctness (see the Connection Pool affinity contract), only a
// hint, and cooperative-scheduling hosts should supply their own
// task-local key instead of relying on this package.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current parses the running goroutine's id out of a runtime.Stack
// trace. This is the same trick used by goroutine-id libraries
// throughout the ecosystem: the stack trace always begins with
// "goroutine <N> [<state>]:". If parsing ever fails (a guarantee the
// runtime doesn't document, only a convention it has kept for years),
// Current returns 0 rather than panicking.
func Current() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]

	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}

	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
