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

package pool

import "github.com/e6data/e6data-go-client/internal/util/goroutineid"

// CallerKey opaquely identifies the caller for affinity purposes. Its
// dynamic type must be comparable; cooperative-scheduling hosts should
// supply their own task-local token rather than relying on
// DefaultCallerKey.
type CallerKey any

// DefaultCallerKey returns the calling goroutine's id as a CallerKey.
// It's a hint, not a guarantee of identity: goroutine ids are reused
// after a goroutine exits, so this default is only meaningful for
// thread-per-request hosts that park one goroutine per caller for the
// lifetime of their use of the pool.
func DefaultCallerKey() CallerKey {
	return goroutineid.Current()
}
