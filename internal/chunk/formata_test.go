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
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func appendLenPrefixedString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func buildMetadataStream(rowCount int64, fields []FieldInfo) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, rowCount)
	_ = binary.Write(&buf, binary.BigEndian, int32(len(fields)))
	for _, f := range fields {
		appendLenPrefixedString(&buf, f.Name)
		appendLenPrefixedString(&buf, f.Type)
		appendLenPrefixedString(&buf, f.Zone)
		appendLenPrefixedString(&buf, f.Format)
	}
	return buf.Bytes()
}

func TestDecodeMetadataRoundTrip(t *testing.T) {
	fields := []FieldInfo{
		{Name: "id", Type: "LONG"},
		{Name: "name", Type: "STRING"},
	}
	stream := buildMetadataStream(3, fields)
	stream = append(stream, []byte("trailing-row-bytes")...)

	md, rest, err := DecodeMetadata(stream)
	require.NoError(t, err)
	require.Equal(t, int64(3), md.RowCount)
	require.Equal(t, fields, md.Fields)
	require.Equal(t, []byte("trailing-row-bytes"), rest)
}

func TestDecodeMetadataRejectsTruncatedHeader(t *testing.T) {
	_, _, err := DecodeMetadata([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRowsHandlesPresenceFlagsAndTypes(t *testing.T) {
	fields := []FieldInfo{{Name: "a", Type: "LONG"}, {Name: "b", Type: "STRING"}}

	var buf bytes.Buffer
	// Row 1: a=42, b="hi"
	buf.WriteByte(1)
	_ = binary.Write(&buf, binary.BigEndian, int64(42))
	buf.WriteByte(1)
	appendLenPrefixedString(&buf, "hi")
	// Row 2: a=NULL, b=NULL
	buf.WriteByte(0)
	buf.WriteByte(0)

	rows, err := DecodeRows(buf.Bytes(), fields)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, Row{int64(42), "hi"}, rows[0])
	require.Equal(t, Row{nil, nil}, rows[1])
}

func TestDecodeRowsSubstitutesSentinelOnTruncatedValue(t *testing.T) {
	fields := []FieldInfo{{Name: "a", Type: "LONG"}}
	var buf bytes.Buffer
	buf.WriteByte(1)
	buf.Write([]byte{0, 0}) // only 2 of 8 bytes for a LONG

	rows, err := DecodeRows(buf.Bytes(), fields)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, parseFailedSentinel, rows[0][0])
}

func TestDecodeRowsRejectsUnknownFieldType(t *testing.T) {
	fields := []FieldInfo{{Name: "a", Type: "FROB"}}
	var buf bytes.Buffer
	buf.WriteByte(1)
	buf.Write([]byte{1, 2, 3, 4})

	_, err := DecodeRows(buf.Bytes(), fields)
	require.Error(t, err)
}

func TestDecodeRowsInt96(t *testing.T) {
	fields := []FieldInfo{{Name: "ts", Type: "INT96"}}
	var buf bytes.Buffer
	buf.WriteByte(1)
	_ = binary.Write(&buf, binary.BigEndian, int32(julianDayUnixEpoch))
	_ = binary.Write(&buf, binary.BigEndian, int64(0))

	rows, err := DecodeRows(buf.Bytes(), fields)
	require.NoError(t, err)
	require.Equal(t, "1970-01-01T00:00:00.000Z", rows[0][0])
}
