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

// Package enginepb stands in for the protoc-generated message and
// service-client types that a real deployment of this library would
// vendor from the query engine's .proto definitions. Per this
// project's scope, generated stubs are a collaborator, not something
// this repository implements — this package exists only so the
// Session Manager, RPC Invoker, and Connection Pool have a concrete
// wire type to compile and test against.
//
// The full service surface (§6 of the design spec) additionally
// includes Explain, ExplainAnalyze, DryRun (v1/v2), SchemaNames (v1/v2),
// Tables (v1/v2), Columns (v1/v2), AddCatalogs, GetAddCatalogsResult,
// GetCatalogs, RefreshCatalogs, SetProps, and UpdateUsers. Those are
// pure passthroughs with no strategy/pool/decode-specific behavior
// beyond what Authenticate/Prepare/Execute/GetNextResultBatch/Status/
// Clear/Cancel already exercise, so most are represented here only as
// method-name constants for the Invoker to dispatch generically
// through Call. SchemaNames, Tables and Columns additionally have
// request/response message types, used by the client's introspection
// calls. None of them has an individually hand-typed client method.
package enginepb

import "google.golang.org/grpc"

// Full method names, matching the "/service/Method" shape gRPC uses on
// the wire. The service name is nominal; no .proto file backs it.
const (
	MethodAuthenticate        = "/e6data.engine.QueryEngine/Authenticate"
	MethodPrepare             = "/e6data.engine.QueryEngine/Prepare"
	MethodExecute             = "/e6data.engine.QueryEngine/Execute"
	MethodGetResultMetadata   = "/e6data.engine.QueryEngine/GetResultMetadata"
	MethodGetNextResultBatch  = "/e6data.engine.QueryEngine/GetNextResultBatch"
	MethodStatus              = "/e6data.engine.QueryEngine/Status"
	MethodClear               = "/e6data.engine.QueryEngine/Clear"
	MethodCancel              = "/e6data.engine.QueryEngine/Cancel"
	MethodClearOrCancel       = "/e6data.engine.QueryEngine/ClearOrCancel"
	MethodExplain             = "/e6data.engine.QueryEngine/Explain"
	MethodExplainAnalyze      = "/e6data.engine.QueryEngine/ExplainAnalyze"
	MethodDryRun              = "/e6data.engine.QueryEngine/DryRun"
	MethodSchemaNames         = "/e6data.engine.QueryEngine/SchemaNames"
	MethodTables              = "/e6data.engine.QueryEngine/Tables"
	MethodColumns             = "/e6data.engine.QueryEngine/Columns"
	MethodAddCatalogs         = "/e6data.engine.QueryEngine/AddCatalogs"
	MethodGetAddCatalogsResult = "/e6data.engine.QueryEngine/GetAddCatalogsResult"
	MethodGetCatalogs         = "/e6data.engine.QueryEngine/GetCatalogs"
	MethodRefreshCatalogs     = "/e6data.engine.QueryEngine/RefreshCatalogs"
	MethodSetProps            = "/e6data.engine.QueryEngine/SetProps"
	MethodUpdateUsers         = "/e6data.engine.QueryEngine/UpdateUsers"
)

// AuthenticateRequest carries the caller's credentials.
type AuthenticateRequest struct {
	User  string
	Token string
}

// AuthenticateResponse carries the freshly minted session id.
type AuthenticateResponse struct {
	SessionID    string
	NextStrategy string // optional hint, see ResponseHint
}

// PrepareRequest asks the engine to plan a query for later execution.
type PrepareRequest struct {
	SessionID string
	Catalog   string
	Query     string
}

// ColumnInfo describes one projected column of a prepared query.
type ColumnInfo struct {
	Name   string
	Type   string
	Zone   string
	Format string
}

// PrepareResponse returns the handle used for all query follow-ups.
type PrepareResponse struct {
	QueryID        string
	EngineEndpoint string
	Columns        []ColumnInfo
	RowCountHint   int64
	NextStrategy   string
}

// ExecuteRequest runs a previously prepared query.
type ExecuteRequest struct {
	QueryID    string
	Parameters []string
}

// ExecuteResponse acknowledges execution has started.
type ExecuteResponse struct {
	NextStrategy string
}

// GetResultMetadataRequest asks for the Format A row-metadata stream.
type GetResultMetadataRequest struct {
	QueryID string
}

// GetResultMetadataResponse carries the raw Format A bytes.
type GetResultMetadataResponse struct {
	Metadata     []byte
	NextStrategy string
}

// GetNextResultBatchRequest asks for the next Format B chunk.
type GetNextResultBatchRequest struct {
	QueryID string
}

// GetNextResultBatchResponse carries the next batch of results, in
// whichever of the two wire formats the engine chose for this query.
// Chunk carries a self-describing Format B columnar batch; Metadata
// carries a Format A row-metadata-plus-row stream, used for query
// shapes the engine represents row-wise instead of columnar (EXPLAIN,
// metadata-only statements). At most one of the two is populated.
type GetNextResultBatchResponse struct {
	Chunk        []byte
	Metadata     []byte
	IsLast       bool
	NextStrategy string
}

// StatusRequest polls query progress.
type StatusRequest struct {
	QueryID string
}

// StatusResponse reports query progress.
type StatusResponse struct {
	State        string
	NextStrategy string
}

// ClearRequest releases server-side resources for a completed query.
type ClearRequest struct {
	QueryID string
}

// ClearResponse acknowledges a Clear call.
type ClearResponse struct {
	NextStrategy string
}

// CancelRequest cancels an in-flight query.
type CancelRequest struct {
	QueryID string
}

// CancelResponse acknowledges a Cancel call.
type CancelResponse struct {
	NextStrategy string
}

// ClearOrCancelRequest performs whichever of Clear/Cancel applies.
type ClearOrCancelRequest struct {
	QueryID string
}

// ClearOrCancelResponse acknowledges a ClearOrCancel call.
type ClearOrCancelResponse struct {
	NextStrategy string
}

// SchemaNamesRequest asks for the list of schemas visible in catalog.
type SchemaNamesRequest struct {
	Catalog string
}

// SchemaNamesResponse lists schema names. FailedSchemas carries the
// engine's structured catalog-error field (spec.md §7's "Protocol"
// error class) — schemas the catalog could not enumerate, reported
// alongside whatever schemas it could. A non-empty FailedSchemas does
// not fail the RPC; the caller sees both the partial list and the
// failures.
type SchemaNamesResponse struct {
	Schemas       []string
	FailedSchemas []string
	NextStrategy  string
}

// TablesRequest asks for the list of tables in catalog.schema.
type TablesRequest struct {
	Catalog string
	Schema  string
}

// TablesResponse lists table names. FailedSchemas carries the same
// structured catalog-error field as SchemaNamesResponse — a schema
// the catalog could not read tables from.
type TablesResponse struct {
	Tables        []string
	FailedSchemas []string
	NextStrategy  string
}

// ColumnsRequest asks for the column schema of catalog.schema.table.
type ColumnsRequest struct {
	Catalog string
	Schema  string
	Table   string
}

// ColumnsResponse describes a table's columns. FailedSchemas carries
// the same structured catalog-error field as SchemaNamesResponse.
type ColumnsResponse struct {
	Columns       []ColumnInfo
	FailedSchemas []string
	NextStrategy  string
}

// ResponseHint is satisfied by every response message above that may
// carry a "next-strategy" hint (spec.md §6).
type ResponseHint interface {
	GetNextStrategy() string
}

func (r *AuthenticateResponse) GetNextStrategy() string       { return r.NextStrategy }
func (r *PrepareResponse) GetNextStrategy() string            { return r.NextStrategy }
func (r *ExecuteResponse) GetNextStrategy() string            { return r.NextStrategy }
func (r *GetResultMetadataResponse) GetNextStrategy() string  { return r.NextStrategy }
func (r *GetNextResultBatchResponse) GetNextStrategy() string { return r.NextStrategy }
func (r *StatusResponse) GetNextStrategy() string             { return r.NextStrategy }
func (r *ClearResponse) GetNextStrategy() string              { return r.NextStrategy }
func (r *CancelResponse) GetNextStrategy() string             { return r.NextStrategy }
func (r *ClearOrCancelResponse) GetNextStrategy() string      { return r.NextStrategy }
func (r *SchemaNamesResponse) GetNextStrategy() string        { return r.NextStrategy }
func (r *TablesResponse) GetNextStrategy() string              { return r.NextStrategy }
func (r *ColumnsResponse) GetNextStrategy() string              { return r.NextStrategy }

// Invoker is satisfied by *grpc.ClientConn. It's the seam the generated
// client stub would normally wrap; unit tests substitute a fake
// implementation whose Invoke answers in-process, with no dialed
// connection.
type Invoker = grpc.ClientConnInterface
