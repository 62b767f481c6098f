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

// Package e6data is a client library mediating between applications
// and a remote, blue/green-deployed distributed SQL engine reached
// over gRPC. It coordinates deployment-tag discovery, pools
// authenticated channels with per-caller affinity, and decodes the
// engine's columnar result batches into row-oriented Go values.
package e6data

import (
	"context"
	"sync"

	"github.com/e6data/e6data-go-client/internal/chunk"
	"github.com/e6data/e6data-go-client/internal/enginepb"
	"github.com/e6data/e6data-go-client/internal/pool"
	"github.com/e6data/e6data-go-client/internal/rpcinvoker"
	"github.com/e6data/e6data-go-client/internal/strategy"
	"github.com/pkg/errors"
)

// Client is the library's single entry point. It owns one Pool of
// authenticated channels, invoked only through the shared Invoker,
// which in turn consults this Client's Coordinator. Client contains no
// retry, pooling, or decoding logic of its own — every operation below
// is a thin call into internal/rpcinvoker, internal/pool, or
// internal/chunk.
type Client struct {
	p *provider

	closeOnce sync.Once
	closeErr  error
}

// Connect dials the engine, discovers the active deployment tag, and
// establishes the connection pool's first channel. Connect runs
// cfg.Preflight itself, whether or not the caller already has.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Preflight(); err != nil {
		return nil, errors.Wrap(err, "e6data: invalid configuration")
	}
	p, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "e6data: connect")
	}
	return &Client{p: p}, nil
}

// Close drains the connection pool, closing every resident channel.
// Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.p.Close() })
	return c.closeErr
}

// Query is a handle to a prepared (and possibly executing) query. It
// pins the deployment tag observed at prepare time for every
// follow-up call, per spec.md §5's ordering guarantee.
type Query struct {
	c       *Client
	id      strategy.QueryID
	columns []chunk.FieldInfo
}

// QueryID returns the server-assigned handle for q, for logging or
// out-of-band cancellation.
func (q *Query) QueryID() string { return string(q.id) }

// Columns returns the column schema returned by Prepare.
func (q *Query) Columns() []chunk.FieldInfo { return q.columns }

// withChannel acquires a pool channel for the duration of fn and
// releases it afterward, regardless of outcome. Once the Client is
// closed it fails with ErrClientClosed.
func (c *Client) withChannel(ctx context.Context, caller pool.CallerKey, fn func(enginepb.Invoker) (rpcinvoker.ResponseHint, error)) (rpcinvoker.ResponseHint, error) {
	pc, err := c.p.pool.Acquire(ctx, caller)
	if err != nil {
		if errors.Is(err, pool.ErrPoolClosed) {
			return nil, ErrClientClosed
		}
		return nil, err
	}
	defer c.p.pool.Release(pc)
	return fn(pc.Manager.Conn())
}

// Prepare plans query for later execution, registering its tag with
// the coordinator so every follow-up call stays pinned to it — the
// same tag that carried this Prepare call, per spec.md §5's ordering
// guarantee.
func (c *Client) Prepare(ctx context.Context, catalog, query string) (*Query, error) {
	caller := pool.DefaultCallerKey()
	var resolvedTag strategy.Tag
	resp, err := c.p.invoker.Call(ctx, "", func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		if tag, ok := strategy.ParseTag(hdrs.Strategy); ok {
			resolvedTag = tag
		}
		return c.withChannel(ctx, caller, func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.PrepareRequest{Catalog: catalog, Query: query}
			out := &enginepb.PrepareResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodPrepare, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	if err != nil {
		return nil, err
	}
	prep := resp.(*enginepb.PrepareResponse)

	id := strategy.QueryID(prep.QueryID)
	c.p.coord.RegisterQuery(id, resolvedTag)

	columns := make([]chunk.FieldInfo, len(prep.Columns))
	for i, col := range prep.Columns {
		columns[i] = chunk.FieldInfo{Name: col.Name, Type: col.Type, Zone: col.Zone, Format: col.Format}
	}
	// The v1 shape of Prepare (spec.md §6's "prepare (v1/v2 with
	// optional catalog)") omits inline column info; fetch it via the
	// Format A metadata stream instead of failing the caller with an
	// empty schema.
	if len(columns) == 0 {
		meta, err := c.fetchResultMetadata(ctx, id)
		if err != nil {
			return nil, err
		}
		columns = meta.Fields
	}
	return &Query{c: c, id: id, columns: columns}, nil
}

// fetchResultMetadata retrieves the Format A row-metadata stream for
// id via GetResultMetadata.
func (c *Client) fetchResultMetadata(ctx context.Context, id strategy.QueryID) (chunk.Metadata, error) {
	resp, err := c.p.invoker.Call(ctx, id, func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.GetResultMetadataRequest{QueryID: string(id)}
			out := &enginepb.GetResultMetadataResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodGetResultMetadata, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	if err != nil {
		return chunk.Metadata{}, err
	}
	meta, _, err := chunk.DecodeMetadata(resp.(*enginepb.GetResultMetadataResponse).Metadata)
	if err != nil {
		return chunk.Metadata{}, errors.Wrap(err, "e6data: decode result metadata")
	}
	return meta, nil
}

// Execute runs a previously prepared query with the given parameters.
func (q *Query) Execute(ctx context.Context, parameters []string) error {
	_, err := q.c.p.invoker.Call(ctx, q.id, func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return q.c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.ExecuteRequest{QueryID: string(q.id), Parameters: parameters}
			out := &enginepb.ExecuteResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodExecute, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	return err
}

// FetchBatch retrieves the next batch of results, decoding whichever
// wire format the engine returned: a Format B columnar chunk or a
// Format A metadata-plus-row stream. isLast reports whether this was
// the final batch for the query.
func (q *Query) FetchBatch(ctx context.Context) (rows []chunk.Row, isLast bool, err error) {
	resp, err := q.c.p.invoker.Call(ctx, q.id, func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return q.c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.GetNextResultBatchRequest{QueryID: string(q.id)}
			out := &enginepb.GetNextResultBatchResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodGetNextResultBatch, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	batch := resp.(*enginepb.GetNextResultBatchResponse)

	if len(batch.Metadata) > 0 {
		meta, rest, decodeErr := chunk.DecodeMetadata(batch.Metadata)
		if decodeErr != nil {
			return nil, false, errors.Wrap(decodeErr, "e6data: decode result metadata")
		}
		decoded, decodeErr := chunk.DecodeRows(rest, meta.Fields)
		if decodeErr != nil {
			return nil, false, errors.Wrap(decodeErr, "e6data: decode result rows")
		}
		return decoded, batch.IsLast, nil
	}

	c, decodeErr := chunk.DecodeChunk(batch.Chunk)
	if decodeErr != nil {
		return nil, false, errors.Wrap(decodeErr, "e6data: decode result batch")
	}
	return c.Rows(), batch.IsLast, nil
}

// Cancel cancels an in-flight query. Cancellation is best-effort and
// idempotent.
func (q *Query) Cancel(ctx context.Context) error {
	_, err := q.c.p.invoker.Call(ctx, q.id, func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return q.c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.CancelRequest{QueryID: string(q.id)}
			out := &enginepb.CancelResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodCancel, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	q.c.p.coord.ForgetQuery(q.id)
	q.c.p.coord.ApplyPendingAtSafePoint()
	return err
}

// Clear releases server-side resources for a completed query. It is
// the safe point at which a pending deployment-tag hint may be
// promoted to active.
func (q *Query) Clear(ctx context.Context) error {
	_, err := q.c.p.invoker.Call(ctx, q.id, func(ctx context.Context, hdrs rpcinvoker.Headers) (rpcinvoker.ResponseHint, error) {
		return q.c.withChannel(ctx, pool.DefaultCallerKey(), func(conn enginepb.Invoker) (rpcinvoker.ResponseHint, error) {
			req := &enginepb.ClearRequest{QueryID: string(q.id)}
			out := &enginepb.ClearResponse{}
			if err := conn.Invoke(attachHeaders(ctx, hdrs), enginepb.MethodClear, req, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
	q.c.p.coord.ForgetQuery(q.id)
	q.c.p.coord.ApplyPendingAtSafePoint()
	return err
}
