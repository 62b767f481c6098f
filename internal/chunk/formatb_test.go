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

// bitmap packs bools LSB-first into bytes, matching readNullBitmap.
func packBitmap(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func appendNullBitmap(buf *bytes.Buffer, bits []bool) {
	_ = binary.Write(buf, binary.BigEndian, int32(len(bits)))
	buf.Write(packBitmap(bits))
}

func appendVectorHeader(buf *bytes.Buffer, typ VectorType, constant bool, zone, format string) {
	buf.WriteByte(byte(typ))
	if constant {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	appendLenPrefixedString(buf, zone)
	appendLenPrefixedString(buf, format)
}

func TestDecodeChunkNonConstantLongVector(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, int32(3)) // size
	_ = binary.Write(&buf, binary.BigEndian, int32(1)) // one vector

	appendVectorHeader(&buf, TypeLong, false, "", "")
	appendNullBitmap(&buf, []bool{false, true, false})
	for _, v := range []int64{10, 0, 30} {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}

	c, err := DecodeChunk(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, int32(3), c.Size)
	require.Len(t, c.Vectors, 1)

	rows := c.Rows()
	require.Equal(t, Row{int64(10)}, rows[0])
	require.Equal(t, Row{nil}, rows[1])
	require.Equal(t, Row{int64(30)}, rows[2])
}

func TestDecodeChunkConstantStringVector(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, int32(2))
	_ = binary.Write(&buf, binary.BigEndian, int32(1))

	appendVectorHeader(&buf, TypeString, true, "", "")
	appendNullBitmap(&buf, []bool{false})
	appendLenPrefixedString(&buf, "hello")

	c, err := DecodeChunk(buf.Bytes())
	require.NoError(t, err)
	rows := c.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, Row{"hello"}, rows[0])
	require.Equal(t, Row{"hello"}, rows[1])
}

func TestDecodeChunkConstantNullApplies(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, int32(2))
	_ = binary.Write(&buf, binary.BigEndian, int32(1))

	appendVectorHeader(&buf, TypeLong, true, "", "")
	appendNullBitmap(&buf, []bool{true})
	_ = binary.Write(&buf, binary.BigEndian, int64(0))

	c, err := DecodeChunk(buf.Bytes())
	require.NoError(t, err)
	rows := c.Rows()
	require.Equal(t, Row{nil}, rows[0])
	require.Equal(t, Row{nil}, rows[1])
}

func TestDecodeChunkTimestampTZPerRowZone(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, int32(2))
	_ = binary.Write(&buf, binary.BigEndian, int32(1))

	appendVectorHeader(&buf, TypeTimestampTZ, false, "UTC", "")
	appendNullBitmap(&buf, []bool{false, false})
	_ = binary.Write(&buf, binary.BigEndian, int64(0))
	_ = binary.Write(&buf, binary.BigEndian, int64(0))
	appendLenPrefixedString(&buf, "")
	appendLenPrefixedString(&buf, "America/New_York")

	c, err := DecodeChunk(buf.Bytes())
	require.NoError(t, err)
	rows := c.Rows()
	require.Equal(t, "1970-01-01T00:00:00.000Z", rows[0][0])
	require.Equal(t, "1969-12-31T19:00:00.000-05:00", rows[1][0])
}

func TestDecodeChunkDegradesUnsupportedConstantType(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, int32(1))
	_ = binary.Write(&buf, binary.BigEndian, int32(1))
	appendVectorHeader(&buf, TypeShort, true, "", "")
	appendNullBitmap(&buf, []bool{false})

	c, err := DecodeChunk(buf.Bytes())
	require.NoError(t, err)
	rows := c.Rows()
	require.Equal(t, Row{nil}, rows[0])
}

func TestDecodeChunkIgnoresAllNullNonConstantPayload(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, int32(2))
	_ = binary.Write(&buf, binary.BigEndian, int32(1))

	appendVectorHeader(&buf, TypeLong, false, "", "")
	appendNullBitmap(&buf, []bool{true, true})
	// No payload bytes at all: an all-null non-constant vector's
	// payload may be any length, including zero, and must never be
	// read.

	c, err := DecodeChunk(buf.Bytes())
	require.NoError(t, err)
	rows := c.Rows()
	require.Equal(t, Row{nil}, rows[0])
	require.Equal(t, Row{nil}, rows[1])
}

func TestDecodeChunkDegradesTruncatedColumn(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, int32(3))
	_ = binary.Write(&buf, binary.BigEndian, int32(1))

	appendVectorHeader(&buf, TypeLong, false, "", "")
	appendNullBitmap(&buf, []bool{false, false, false})
	_ = binary.Write(&buf, binary.BigEndian, int64(7)) // only one of three values present

	c, err := DecodeChunk(buf.Bytes())
	require.NoError(t, err)
	rows := c.Rows()
	require.Equal(t, Row{int64(7)}, rows[0])
	require.Equal(t, Row{int64(0)}, rows[1])
	require.Equal(t, Row{int64(0)}, rows[2])
}

func TestDecodeChunkRejectsTruncatedHeader(t *testing.T) {
	_, err := DecodeChunk([]byte{0, 0})
	require.Error(t, err)
}
