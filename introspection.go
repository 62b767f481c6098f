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

	"github.com/e6data/e6data-go-client/internal/enginepb"
	"github.com/e6data/e6data-go-client/internal/pool"
	"github.com/e6data/e6data-go-client/internal/rpcinvoker"
)

// SchemaNames lists the schemas visible in catalog. Like Tables and
// Columns, it carries no strategy/pool/decode-specific behavior beyond
// what Prepare/Execute already exercise, routed through the same
// Invoker and Pool — except for surfacing a *CatalogError when the
// response reports schemas the catalog itself failed to enumerate; the
// RPC succeeded, so the partial Schemas list and the error are both
// returned to the caller.
func (c *Client) SchemaNames(ctx context.Context, catalog string) ([]string, error) {
	resp, err := c.p.invoker.Call(ctx, "", func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.SchemaNamesRequest{Catalog: catalog}
			out := &enginepb.SchemaNamesResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodSchemaNames, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := resp.(*enginepb.SchemaNamesResponse)
	if len(out.FailedSchemas) > 0 {
		return out.Schemas, &CatalogError{Failures: out.FailedSchemas}
	}
	return out.Schemas, nil
}

// Tables lists the tables in catalog.schema.
func (c *Client) Tables(ctx context.Context, catalog, schema string) ([]string, error) {
	resp, err := c.p.invoker.Call(ctx, "", func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.TablesRequest{Catalog: catalog, Schema: schema}
			out := &enginepb.TablesResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodTables, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := resp.(*enginepb.TablesResponse)
	if len(out.FailedSchemas) > 0 {
		return out.Tables, &CatalogError{Failures: out.FailedSchemas}
	}
	return out.Tables, nil
}

// Columns describes the columns of catalog.schema.table.
func (c *Client) Columns(ctx context.Context, catalog, schema, table string) ([]enginepb.ColumnInfo, error) {
	resp, err := c.p.invoker.Call(ctx, "", func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.ColumnsRequest{Catalog: catalog, Schema: schema, Table: table}
			out := &enginepb.ColumnsResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodColumns, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := resp.(*enginepb.ColumnsResponse)
	if len(out.FailedSchemas) > 0 {
		return out.Columns, &CatalogError{Failures: out.FailedSchemas}
	}
	return out.Columns, nil
}
