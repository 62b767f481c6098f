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
	"strings"

	"github.com/e6data/e6data-go-client/internal/pool"
	"github.com/pkg/errors"
)

// User-visible error sentinels. Retry, re-authentication, and strategy
// rediscovery are invisible to callers unless logged; these are the
// only failure modes a caller is expected to branch on.
var (
	// ErrPoolExhausted is returned by a Client or Query operation when
	// acquireTimeout elapses without a free pool channel becoming
	// available.
	ErrPoolExhausted = pool.ErrPoolExhausted

	// ErrClientClosed is returned by any operation attempted after
	// Close.
	ErrClientClosed = errors.New("e6data: client is closed")

	// ErrNotConnected is returned by an operation that requires an
	// established query handle before one exists.
	ErrNotConnected = errors.New("e6data: not connected")
)

// CatalogError wraps the server's structured catalog/schema error
// collection (spec.md §7's "Protocol" error class). It is never
// treated as an RPC failure: the call succeeded, but part of its
// result is a reported failure the caller must inspect.
type CatalogError struct {
	Failures []string
}

func (e *CatalogError) Error() string {
	if len(e.Failures) == 0 {
		return "e6data: catalog operation reported failures"
	}
	return "e6data: catalog operation reported failures: " + strings.Join(e.Failures, "; ")
}
