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

// Package chunk decodes the engine's two result wire formats — a
// fixed-width row-metadata stream and a self-describing columnar
// batch — into row-oriented Go values. It is a pure function of its
// input bytes and declared schema: no I/O, no hidden state.
package chunk

// VectorType identifies the wire encoding (and therefore the decoding
// rule) of one column.
type VectorType int

const (
	TypeUnknown VectorType = iota
	TypeLong
	TypeInteger
	TypeShort
	TypeByte
	TypeDouble
	TypeFloat
	TypeBoolean
	TypeString
	TypeArray
	TypeMap
	TypeStruct
	TypeBinary
	TypeDate
	TypeDatetime
	TypeTimestampTZ
	TypeInt96
	TypeDecimal128
	TypeNull
)

// parseFailedSentinel is returned in place of a per-row value in
// Format A when a typed conversion fails; Format A never aborts an
// in-progress chunk, it substitutes this text instead.
const parseFailedSentinel = "Failed to parse."

// FieldInfo describes one column as declared in the Format A metadata
// stream.
type FieldInfo struct {
	Name   string
	Type   string
	Zone   string
	Format string
}

// Metadata is the decoded Format A row-metadata stream.
type Metadata struct {
	RowCount int64
	Fields   []FieldInfo
}

// Vector is one self-describing column of a Format B chunk.
type Vector struct {
	Size     int32
	Type     VectorType
	Constant bool
	Nulls    []bool
	Zone     string
	Format   string
	Data     any // typed slice (non-constant) or scalar (constant), per the vector type table
}

// Chunk is a decoded Format B columnar batch.
type Chunk struct {
	Size    int32
	Vectors []Vector
}

// Row is one row-oriented projection of a Chunk or metadata+row
// stream: Row[j] corresponds to Chunk.Vectors[j] (or Metadata.Fields[j]).
type Row []any
