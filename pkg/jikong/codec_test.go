// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Empty(t *testing.T) {
	assert.Equal(t, byte(0), Checksum(nil))
	assert.Equal(t, byte(0), Checksum([]byte{}))
}

func TestChecksum_Wraps(t *testing.T) {
	assert.Equal(t, byte(0x01), Checksum([]byte{0xFF, 0x02}))
	assert.Equal(t, byte(0x00), Checksum([]byte{0x80, 0x80}))
}

func TestChecksum_MatchesModularSum(t *testing.T) {
	rng := newFuzzRng(t)
	for round := 0; round < getFuzzRounds(); round++ {
		data := make([]byte, rng.Intn(400))
		rng.Read(data)

		sum := 0
		for _, b := range data {
			sum += int(b)
		}
		if got := Checksum(data); got != byte(sum%256) {
			t.Fatalf("round %d: checksum 0x%02X, want 0x%02X", round, got, sum%256)
		}
	}
}

func TestVerifyChecksum(t *testing.T) {
	frame := buildResponse(TagCellInfo, nil)
	require.NoError(t, VerifyChecksum(frame))

	frame[100] ^= 0x01
	err := VerifyChecksum(frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksum))

	var ce *ChecksumError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, frame[ResponseSize-1], ce.Expected)
	assert.NotEqual(t, ce.Expected, ce.Computed)
}

func TestVerifyChecksum_Empty(t *testing.T) {
	err := VerifyChecksum(nil)
	assert.True(t, errors.Is(err, ErrMalformedFrame))
}

// ============================================================
// Encoder Tests
// ============================================================

func TestBuildCommand_DeviceInfo(t *testing.T) {
	frame := BuildCommand(OpcodeDeviceInfo, [4]byte{})
	expected := []byte{
		0xAA, 0x55, 0x90, 0xEB, 0x97, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x11,
	}
	assert.Equal(t, expected, frame)
}

func TestBuildCommand_CellInfo(t *testing.T) {
	frame := BuildCommand(OpcodeCellInfo, [4]byte{})
	require.Len(t, frame, CommandSize)
	assert.Equal(t, byte(0x96), frame[4])
	assert.Equal(t, byte(0x10), frame[CommandSize-1])
}

func TestBuildCommand_Value(t *testing.T) {
	frame := BuildCommandWithLength(0x1D, [4]byte{0x01, 0x02, 0x03, 0x04}, 0x04)
	require.Len(t, frame, CommandSize)
	assert.Equal(t, CommandPreamble[:], frame[:4])
	assert.Equal(t, byte(0x1D), frame[4])
	assert.Equal(t, byte(0x04), frame[5])
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, frame[6:10])
	assert.Equal(t, make([]byte, 9), frame[10:19])
	assert.NoError(t, VerifyChecksum(frame))
}

// ============================================================
// Field Parsing Tests
// ============================================================

func TestParseInt(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		offset   int
		width    int
		signed   bool
		expected int64
	}{
		{"u8", []byte{0xFF}, 0, 1, false, 255},
		{"s8", []byte{0xFF}, 0, 1, true, -1},
		{"u16 little-endian", []byte{0x00, 0x34, 0x12}, 1, 2, false, 0x1234},
		{"s16 negative", []byte{0xDD, 0xFF}, 0, 2, true, -35},
		{"u32", []byte{0x83, 0xCF, 0x00, 0x00}, 0, 4, false, 53123},
		{"s32 negative", []byte{0x2C, 0xCF, 0xFF, 0xFF}, 0, 4, true, -12500},
		{"u32 high bit", []byte{0x00, 0x00, 0x00, 0x80}, 0, 4, false, 0x80000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseInt(tt.data, tt.offset, tt.width, tt.signed)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestParseInt_OutOfRange(t *testing.T) {
	data := make([]byte, 10)
	for _, c := range []struct{ offset, width int }{
		{9, 2}, {10, 1}, {-1, 1}, {0, 0}, {0, 9},
	} {
		_, err := ParseInt(data, c.offset, c.width, false)
		require.Error(t, err, "offset=%d width=%d", c.offset, c.width)
		assert.True(t, errors.Is(err, ErrMalformedFrame))
	}
}

func TestParseField_Divisor(t *testing.T) {
	data := []byte{0x83, 0xCF, 0x00, 0x00, 0xDD, 0xFF}

	v, err := ParseField(data, Field{Offset: 0, Width: 4, Divisor: 1000})
	require.NoError(t, err)
	assert.Equal(t, 53.123, v)

	v, err = ParseField(data, Field{Offset: 4, Width: 2, Signed: true, Divisor: 10})
	require.NoError(t, err)
	assert.Equal(t, -3.5, v)

	v, err = ParseField(data, Field{Offset: 4, Width: 2})
	require.NoError(t, err)
	assert.Equal(t, float64(0xFFDD), v)
}

func TestFrame_Type(t *testing.T) {
	assert.Equal(t, byte(TagCellInfo), NewFrame(buildResponse(TagCellInfo, nil)).Type())
	assert.Equal(t, byte(0), NewFrame([]byte{0x55, 0xAA}).Type())
}

func TestNewFrame_Copies(t *testing.T) {
	data := buildResponse(TagSettings, nil)
	f := NewFrame(data)
	data[TypeOffset] = 0x7F
	assert.Equal(t, byte(TagSettings), f.Type())
	assert.True(t, f.HasPreamble())
	assert.Equal(t, ResponseSize, f.Len())
}
