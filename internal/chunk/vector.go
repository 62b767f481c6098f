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

import (
	"encoding/binary"
	"math"
)

func decodeFloat32(data []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(data))
}

func decodeFloat64(data []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(data))
}

// Rows projects a Format B Chunk into row tuples. It performs exactly
// two passes: one over each vector to materialize its values, and one
// over the rows to assemble tuples, avoiding per-cell allocation
// beyond what each vector's typed payload already requires.
func (c Chunk) Rows() []Row {
	rows := make([]Row, c.Size)
	for i := range rows {
		rows[i] = make(Row, len(c.Vectors))
	}
	for col, v := range c.Vectors {
		values := v.project(int(c.Size))
		for row, val := range values {
			rows[row][col] = val
		}
	}
	return rows
}

// project expands a vector's typed payload (per-row array or scalar
// constant) into size row values, honoring the null bitmap. A
// constant vector's single null flag (or absent flag, read as
// not-null) applies to every projected row.
func (v Vector) project(size int) []any {
	out := make([]any, size)
	if v.Constant {
		val := v.constantValue()
		null := len(v.Nulls) > 0 && v.Nulls[0]
		for i := range out {
			if null {
				out[i] = nil
			} else {
				out[i] = val
			}
		}
		return out
	}
	for i := 0; i < size; i++ {
		if i < len(v.Nulls) && v.Nulls[i] {
			out[i] = nil
			continue
		}
		out[i] = v.nonConstantValue(i)
	}
	return out
}

// constantValue renders a constant vector's single stored value into
// its row-level representation (e.g. epoch-micros to ISO text for
// temporal types).
func (v Vector) constantValue() any {
	switch v.Type {
	case TypeDate:
		return formatDate(v.Data.(int64))
	case TypeDatetime:
		return formatDatetime(v.Data.(int64))
	case TypeTimestampTZ:
		return formatTimestampTZ(v.Data.(int64), v.Zone)
	default:
		return v.Data
	}
}

// nonConstantValue indexes into a vector's per-row typed slice and
// renders it into its row-level representation.
func (v Vector) nonConstantValue(i int) any {
	switch v.Type {
	case TypeLong:
		return v.Data.([]int64)[i]
	case TypeInteger:
		return v.Data.([]int32)[i]
	case TypeDouble:
		return v.Data.([]float64)[i]
	case TypeFloat:
		return v.Data.([]float32)[i]
	case TypeBoolean:
		return v.Data.([]bool)[i]
	case TypeString, TypeArray, TypeMap, TypeStruct:
		return v.Data.([]string)[i]
	case TypeBinary:
		return v.Data.([][]byte)[i]
	case TypeDate:
		return formatDate(v.Data.([]int64)[i])
	case TypeDatetime:
		return formatDatetime(v.Data.([]int64)[i])
	case TypeTimestampTZ:
		tz := v.Data.(tzColumn)
		zone := v.Zone
		if i < len(tz.zones) && tz.zones[i] != "" {
			zone = tz.zones[i]
		}
		return formatTimestampTZ(tz.micros[i], zone)
	case TypeDecimal128:
		return v.Data.([]any)[i]
	case TypeNull:
		return nil
	default:
		return nil
	}
}
