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
	"strings"

	"github.com/pkg/errors"
)

// DecodeMetadata decodes the Format A fixed-width row-metadata stream:
// an int64 row count, an int32 field count, and that many fields of
// four length-prefixed UTF-8 strings (name, type, zone, format). It
// returns the bytes following the header, which for batch responses
// is the per-row value stream consumed by DecodeRows.
func DecodeMetadata(data []byte) (Metadata, []byte, error) {
	if len(data) < 12 {
		return Metadata{}, nil, errors.New("chunk: metadata stream shorter than fixed header")
	}
	rowCount := int64(binary.BigEndian.Uint64(data))
	fieldCount := int32(binary.BigEndian.Uint32(data[8:]))
	if fieldCount < 0 {
		return Metadata{}, nil, errors.Errorf("chunk: negative field count %d", fieldCount)
	}
	rest := data[12:]

	fields := make([]FieldInfo, 0, fieldCount)
	for i := int32(0); i < fieldCount; i++ {
		var name, typ, zone, format string
		var err error
		if name, rest, err = readLenPrefixedString(rest); err != nil {
			return Metadata{}, nil, errors.Wrapf(err, "chunk: field %d name", i)
		}
		if typ, rest, err = readLenPrefixedString(rest); err != nil {
			return Metadata{}, nil, errors.Wrapf(err, "chunk: field %d type", i)
		}
		if zone, rest, err = readLenPrefixedString(rest); err != nil {
			return Metadata{}, nil, errors.Wrapf(err, "chunk: field %d zone", i)
		}
		if format, rest, err = readLenPrefixedString(rest); err != nil {
			return Metadata{}, nil, errors.Wrapf(err, "chunk: field %d format", i)
		}
		fields = append(fields, FieldInfo{Name: name, Type: typ, Zone: zone, Format: format})
	}
	return Metadata{RowCount: rowCount, Fields: fields}, rest, nil
}

// readLenPrefixedString reads a uint16 length prefix followed by that
// many bytes of UTF-8 text, returning the remaining bytes.
func readLenPrefixedString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, errors.New("chunk: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return "", nil, errors.New("chunk: truncated length-prefixed string")
	}
	return string(data[:n]), data[n:], nil
}

// DecodeRows decodes the per-row value stream that follows a Format A
// metadata header in batch responses: per row, an int8 presence flag
// followed (if present) by a big-endian typed value whose width is
// determined by the field's declared type. A per-field conversion
// failure substitutes the reserved sentinel text rather than aborting
// the remaining rows.
func DecodeRows(data []byte, fields []FieldInfo) ([]Row, error) {
	var rows []Row
	for len(data) > 0 {
		row := make(Row, len(fields))
		var err error
		for i, f := range fields {
			row[i], data, err = decodeFormatAValue(data, f)
			if err != nil {
				return rows, err
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeFormatAValue(data []byte, f FieldInfo) (any, []byte, error) {
	if len(data) < 1 {
		return nil, nil, errors.New("chunk: truncated row, missing presence flag")
	}
	present := data[0]
	data = data[1:]
	if present == 0 {
		return nil, data, nil
	}

	switch strings.ToUpper(f.Type) {
	case "INT", "INTEGER":
		if len(data) < 4 {
			return parseFailedSentinel, nil, nil
		}
		return int32(binary.BigEndian.Uint32(data)), data[4:], nil
	case "LONG":
		if len(data) < 8 {
			return parseFailedSentinel, nil, nil
		}
		return int64(binary.BigEndian.Uint64(data)), data[8:], nil
	case "DATE":
		if len(data) < 8 {
			return parseFailedSentinel, nil, nil
		}
		return formatDate(int64(binary.BigEndian.Uint64(data))), data[8:], nil
	case "DATETIME":
		if len(data) < 8 {
			return parseFailedSentinel, nil, nil
		}
		return formatDatetime(int64(binary.BigEndian.Uint64(data))), data[8:], nil
	case "SHORT":
		if len(data) < 2 {
			return parseFailedSentinel, nil, nil
		}
		return int16(binary.BigEndian.Uint16(data)), data[2:], nil
	case "BYTE":
		if len(data) < 1 {
			return parseFailedSentinel, nil, nil
		}
		return int8(data[0]), data[1:], nil
	case "FLOAT":
		if len(data) < 4 {
			return parseFailedSentinel, nil, nil
		}
		return decodeFloat32(data), data[4:], nil
	case "DOUBLE":
		if len(data) < 8 {
			return parseFailedSentinel, nil, nil
		}
		return decodeFloat64(data), data[8:], nil
	case "BOOLEAN":
		if len(data) < 1 {
			return parseFailedSentinel, nil, nil
		}
		return data[0] != 0, data[1:], nil
	case "BINARY":
		s, rest, err := readLenPrefixedBytes(data)
		if err != nil {
			return parseFailedSentinel, nil, nil
		}
		return s, rest, nil
	case "STRING", "ARRAY", "MAP", "STRUCT":
		s, rest, err := readLenPrefixedString(data)
		if err != nil {
			return parseFailedSentinel, nil, nil
		}
		return s, rest, nil
	case "DECIMAL128":
		raw, rest, err := readLenPrefixedBytes(data)
		if err != nil {
			return parseFailedSentinel, nil, nil
		}
		return decodeDecimal128(raw), rest, nil
	case "INT96":
		if len(data) < 12 {
			return parseFailedSentinel, nil, nil
		}
		julianDay := int32(binary.BigEndian.Uint32(data))
		nanos := int64(binary.BigEndian.Uint64(data[4:]))
		return formatInt96(julianDay, nanos), data[12:], nil
	default:
		return nil, nil, errors.Errorf("chunk: unknown field type %q, cannot determine value width", f.Type)
	}
}

func readLenPrefixedBytes(data []byte) ([]byte, []byte, error) {
	if len(data) < 2 {
		return nil, nil, errors.New("chunk: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return nil, nil, errors.New("chunk: truncated length-prefixed bytes")
	}
	out := make([]byte, n)
	copy(out, data[:n])
	return out, data[n:], nil
}
