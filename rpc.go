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

	"github.com/e6data/e6data-go-client/internal/rpcinvoker"
	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

// attachHeaders stamps the request metadata headers spec.md §6
// requires on every outbound call: strategy (omitted if unknown),
// plannerip, and cluster-uuid (omitted if unset), plus a fresh
// request-id correlating this specific RPC attempt across the
// client's own logs and whatever the engine logs on its side. A retry
// gets its own id rather than reusing the failed attempt's.
func attachHeaders(ctx context.Context, hdrs rpcinvoker.Headers) context.Context {
	pairs := make([]string, 0, 8)
	pairs = append(pairs, "request-id", uuid.NewString())
	if hdrs.Strategy != "" {
		pairs = append(pairs, "strategy", hdrs.Strategy)
	}
	if hdrs.PlannerIP != "" {
		pairs = append(pairs, "plannerip", hdrs.PlannerIP)
	}
	if hdrs.ClusterUUID != "" {
		pairs = append(pairs, "cluster-uuid", hdrs.ClusterUUID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}
