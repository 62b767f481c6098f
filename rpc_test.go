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
	"testing"

	"github.com/e6data/e6data-go-client/internal/rpcinvoker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestAttachHeadersStampsRequestID(t *testing.T) {
	hdrs := rpcinvoker.Headers{Strategy: "blue", PlannerIP: "10.0.0.1", ClusterUUID: "c-1"}

	ctx1 := attachHeaders(context.Background(), hdrs)
	ctx2 := attachHeaders(context.Background(), hdrs)

	md1, ok := metadata.FromOutgoingContext(ctx1)
	require.True(t, ok)
	md2, ok := metadata.FromOutgoingContext(ctx2)
	require.True(t, ok)

	id1 := md1.Get("request-id")
	id2 := md2.Get("request-id")
	require.Len(t, id1, 1)
	require.Len(t, id2, 1)
	require.NotEqual(t, id1[0], id2[0], "each RPC attempt should get its own correlation id")
	_, err := uuid.Parse(id1[0])
	require.NoError(t, err)

	require.Equal(t, []string{"blue"}, md1.Get("strategy"))
	require.Equal(t, []string{"10.0.0.1"}, md1.Get("plannerip"))
	require.Equal(t, []string{"c-1"}, md1.Get("cluster-uuid"))
}

func TestAttachHeadersOmitsUnsetFields(t *testing.T) {
	ctx := attachHeaders(context.Background(), rpcinvoker.Headers{})
	md, ok := metadata.FromOutgoingContext(ctx)
	require.True(t, ok)
	require.Empty(t, md.Get("strategy"))
	require.Empty(t, md.Get("plannerip"))
	require.Empty(t, md.Get("cluster-uuid"))
	require.Len(t, md.Get("request-id"), 1)
}
