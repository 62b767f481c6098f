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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// tzColumn is the non-constant payload for a TIMESTAMP_TZ vector: a
// column of epoch-microsecond instants together with a per-row zone
// override. An empty per-row zone falls back to the vector's Zone
// field.
type tzColumn struct {
	micros []int64
	zones  []string
}

// DecodeChunk decodes a self-describing Format B columnar batch: an
// int32 row count and an int32 vector count, followed by that many
// vectors, each carrying its
// own type, constant flag, null bitmap, zone, format, and typed
// payload. A vector header that is itself truncated or malformed
// still aborts decoding, since there is no way to find the next
// vector's boundary without it. Within a well-formed vector, an
// unrecognized type or a short payload degrades that vector's values
// to nil rather than failing the batch; see decodeColumn and
// decodeScalar.
func DecodeChunk(data []byte) (Chunk, error) {
	if len(data) < 4 {
		return Chunk{}, errors.New("chunk: truncated Format B header")
	}
	size := int32(binary.BigEndian.Uint32(data))
	data = data[4:]
	if size < 0 {
		return Chunk{}, errors.Errorf("chunk: negative row count %d", size)
	}
	if len(data) < 4 {
		return Chunk{}, errors.New("chunk: truncated vector count")
	}
	vectorCount := int32(binary.BigEndian.Uint32(data))
	data = data[4:]
	if vectorCount < 0 {
		return Chunk{}, errors.Errorf("chunk: negative vector count %d", vectorCount)
	}

	vectors := make([]Vector, 0, vectorCount)
	for i := int32(0); i < vectorCount; i++ {
		v, rest, err := decodeVector(data, size)
		if err != nil {
			return Chunk{}, errors.Wrapf(err, "chunk: vector %d", i)
		}
		vectors = append(vectors, v)
		data = rest
	}
	return Chunk{Size: size, Vectors: vectors}, nil
}

func decodeVector(data []byte, size int32) (Vector, []byte, error) {
	if len(data) < 2 {
		return Vector{}, nil, errors.New("truncated vector header")
	}
	typ := VectorType(data[0])
	constant := data[1] != 0
	data = data[2:]

	zone, data, err := readLenPrefixedString(data)
	if err != nil {
		return Vector{}, nil, errors.Wrap(err, "zone")
	}
	format, data, err := readLenPrefixedString(data)
	if err != nil {
		return Vector{}, nil, errors.Wrap(err, "format")
	}

	nullCount := int(size)
	if constant {
		nullCount = 1
	}
	nulls, data, err := readNullBitmap(data, nullCount)
	if err != nil {
		return Vector{}, nil, errors.Wrap(err, "nulls")
	}

	payload, data := decodeVectorPayload(data, typ, constant, int(size), nulls)

	return Vector{
		Size:     size,
		Type:     typ,
		Constant: constant,
		Nulls:    nulls,
		Zone:     zone,
		Format:   format,
		Data:     payload,
	}, data, nil
}

// readNullBitmap reads an int32 bit count followed by ceil(n/8) bytes
// of packed, LSB-first bits, returning n bool flags. A bit count of 0
// (the "absent" case for a constant vector with no null) yields a
// nil, always-false slice.
func readNullBitmap(data []byte, n int) ([]bool, []byte, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("truncated null-bitmap length")
	}
	bitLen := int(int32(binary.BigEndian.Uint32(data)))
	data = data[4:]
	if bitLen < 0 {
		return nil, nil, errors.Errorf("negative null-bitmap length %d", bitLen)
	}
	byteLen := (bitLen + 7) / 8
	if len(data) < byteLen {
		return nil, nil, errors.New("truncated null bitmap")
	}
	raw := data[:byteLen]
	data = data[byteLen:]

	if bitLen == 0 {
		return nil, data, nil
	}
	out := make([]bool, bitLen)
	for i := 0; i < bitLen; i++ {
		out[i] = raw[i/8]&(1<<uint(i%8)) != 0
	}
	_ = n // bitLen is authoritative; n documents the expected length for the caller
	return out, data, nil
}

func decodeVectorPayload(data []byte, typ VectorType, constant bool, size int, nulls []bool) (any, []byte) {
	if constant {
		return decodeScalar(data, typ)
	}
	return decodeColumn(data, typ, size, nulls)
}

// decodeScalar decodes a constant vector's single stored value. An
// unrecognized type or a short payload is logged and degrades to a
// nil value; it never fails the enclosing DecodeChunk call, since a
// constant vector's single row is already rendered nil by its null
// bit when the engine means for it to be absent, and a value the
// client can't make sense of is no different from an absent one.
func decodeScalar(data []byte, typ VectorType) (any, []byte) {
	switch typ {
	case TypeLong, TypeInteger, TypeDate, TypeDatetime, TypeTimestampTZ:
		if len(data) < 8 {
			log.WithField("type", typ).Warn("chunk: truncated int64 scalar, substituting nil")
			return nil, nil
		}
		return int64(binary.BigEndian.Uint64(data)), data[8:]
	case TypeDouble, TypeFloat:
		if len(data) < 8 {
			log.WithField("type", typ).Warn("chunk: truncated float64 scalar, substituting nil")
			return nil, nil
		}
		return decodeFloat64(data), data[8:]
	case TypeBoolean:
		if len(data) < 1 {
			log.WithField("type", typ).Warn("chunk: truncated bool scalar, substituting nil")
			return nil, nil
		}
		return data[0] != 0, data[1:]
	case TypeString, TypeArray, TypeMap, TypeStruct:
		s, rest, err := readLenPrefixedString(data)
		if err != nil {
			log.WithField("type", typ).WithError(err).Warn("chunk: malformed scalar, substituting nil")
			return nil, nil
		}
		return s, rest
	case TypeBinary:
		b, rest, err := readLenPrefixedBytes(data)
		if err != nil {
			log.WithField("type", typ).WithError(err).Warn("chunk: malformed scalar, substituting nil")
			return nil, nil
		}
		return b, rest
	case TypeDecimal128:
		raw, rest := readFixedBytes(data, 16)
		return decodeDecimal128(raw), rest
	case TypeNull:
		return nil, data
	default:
		log.WithField("type", typ).Warn("chunk: unsupported constant vector type, substituting nil")
		return nil, data
	}
}

// allNullCoverage reports whether nulls marks every one of the
// vector's size rows as null. A non-constant vector in this state may
// carry a payload of any length, including zero, per the wire format:
// the engine has nothing to say about an all-null column, so its
// bytes (if any) are never interpreted.
func allNullCoverage(nulls []bool, size int) bool {
	if size == 0 || len(nulls) < size {
		return false
	}
	for i := 0; i < size; i++ {
		if !nulls[i] {
			return false
		}
	}
	return true
}

// decodeColumn decodes a non-constant vector's size-row payload. As
// with decodeScalar, a bad column never aborts the batch: an
// unrecognized type logs a warning and yields an all-nil column, and
// a payload that runs out mid-column zero-fills the remaining rows
// and logs a warning rather than propagating an error. An all-null
// vector's payload is never inspected at all, matching the wire
// format's allowance for it to carry any length, including none.
func decodeColumn(data []byte, typ VectorType, size int, nulls []bool) (any, []byte) {
	if allNullCoverage(nulls, size) {
		return nil, data
	}
	switch typ {
	case TypeLong:
		out := make([]int64, size)
		for i := range out {
			if len(data) < 8 {
				log.WithField("type", typ).Warn("chunk: truncated int64 column, zero-filling remainder")
				return out, nil
			}
			out[i] = int64(binary.BigEndian.Uint64(data))
			data = data[8:]
		}
		return out, data
	case TypeInteger:
		out := make([]int32, size)
		for i := range out {
			if len(data) < 4 {
				log.WithField("type", typ).Warn("chunk: truncated int32 column, zero-filling remainder")
				return out, nil
			}
			out[i] = int32(binary.BigEndian.Uint32(data))
			data = data[4:]
		}
		return out, data
	case TypeDate, TypeDatetime:
		out := make([]int64, size)
		for i := range out {
			if len(data) < 8 {
				log.WithField("type", typ).Warn("chunk: truncated int64 column, zero-filling remainder")
				return out, nil
			}
			out[i] = int64(binary.BigEndian.Uint64(data))
			data = data[8:]
		}
		return out, data
	case TypeTimestampTZ:
		micros := make([]int64, size)
		zones := make([]string, size)
		truncated := false
		for i := range micros {
			if len(data) < 8 {
				truncated = true
				break
			}
			micros[i] = int64(binary.BigEndian.Uint64(data))
			data = data[8:]
		}
		if !truncated {
			for i := range zones {
				var z string
				var err error
				if z, data, err = readLenPrefixedString(data); err != nil {
					truncated = true
					break
				}
				zones[i] = z
			}
		}
		if truncated {
			log.WithField("type", typ).Warn("chunk: truncated timestamptz column, zero-filling remainder")
			return tzColumn{micros: micros, zones: zones}, nil
		}
		return tzColumn{micros: micros, zones: zones}, data
	case TypeDouble:
		out := make([]float64, size)
		for i := range out {
			if len(data) < 8 {
				log.WithField("type", typ).Warn("chunk: truncated float64 column, zero-filling remainder")
				return out, nil
			}
			out[i] = decodeFloat64(data)
			data = data[8:]
		}
		return out, data
	case TypeFloat:
		out := make([]float32, size)
		for i := range out {
			if len(data) < 4 {
				log.WithField("type", typ).Warn("chunk: truncated float32 column, zero-filling remainder")
				return out, nil
			}
			out[i] = decodeFloat32(data)
			data = data[4:]
		}
		return out, data
	case TypeBoolean:
		out := make([]bool, size)
		for i := range out {
			if len(data) < 1 {
				log.WithField("type", typ).Warn("chunk: truncated bool column, zero-filling remainder")
				return out, nil
			}
			out[i] = data[0] != 0
			data = data[1:]
		}
		return out, data
	case TypeString, TypeArray, TypeMap, TypeStruct:
		out := make([]string, size)
		for i := range out {
			var err error
			if out[i], data, err = readLenPrefixedString(data); err != nil {
				log.WithField("type", typ).Warn("chunk: truncated column, zero-filling remainder")
				return out, nil
			}
		}
		return out, data
	case TypeBinary:
		out := make([][]byte, size)
		for i := range out {
			var err error
			if out[i], data, err = readLenPrefixedBytes(data); err != nil {
				log.WithField("type", typ).Warn("chunk: truncated column, zero-filling remainder")
				return out, nil
			}
		}
		return out, data
	case TypeDecimal128:
		out := make([]any, size)
		for i := range out {
			var raw []byte
			raw, data = readFixedBytes(data, 16)
			out[i] = decodeDecimal128(raw)
		}
		return out, data
	case TypeNull:
		return nil, data
	default:
		log.WithField("type", typ).Warn("chunk: unsupported column vector type, substituting nil column")
		return nil, data
	}
}

// readFixedBytes reads n bytes, or however many remain if fewer are
// available. Callers that need an exact width (currently only
// Decimal128, which already degrades a short or malformed read to a
// zero value) are responsible for treating a short result as such;
// this never errors, since spec.md's "any other length decodes to
// decimal zero" rule has no room for a hard failure here.
func readFixedBytes(data []byte, n int) ([]byte, []byte) {
	if len(data) < n {
		return data, nil
	}
	out := make([]byte, n)
	copy(out, data[:n])
	return out, data[n:]
}
