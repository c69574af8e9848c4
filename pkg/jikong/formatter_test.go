// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatMessageType(t *testing.T) {
	assert.Equal(t, "SETTINGS", FormatMessageType(TagSettings))
	assert.Equal(t, "CELL_INFO", FormatMessageType(TagCellInfo))
	assert.Equal(t, "DEVICE_INFO", FormatMessageType(TagDeviceInfo))
	assert.Equal(t, "CMD_CELL_INFO", FormatMessageType(OpcodeCellInfo))
	assert.Equal(t, "UNKNOWN", FormatMessageType(0x42))
}

func TestFormatFrame(t *testing.T) {
	out := FormatFrame(NewFrame(buildCellInfo(defaultCellInfo())))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Contains(t, lines[0], "CELL_INFO (0x02) len=300")
	// header plus 19 rows of 16 bytes
	assert.Len(t, lines, 1+19)
	assert.True(t, strings.HasPrefix(lines[1], "  0000: 55 AA EB 90 02"))
}

func TestFormatSample(t *testing.T) {
	s := Sample{
		Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Voltage:        53.123,
		Current:        -12.5,
		Charge:         80.25,
		ChargeFull:     100,
		Temperatures:   [2]float64{21.5, -3.5},
		MOSTemperature: 30.1,
		Cycles:         42,
	}
	out := FormatSample(s)
	assert.Contains(t, out, "53.123V")
	assert.Contains(t, out, "-12.500A")
	assert.Contains(t, out, "80.250/100.000Ah")
	assert.Contains(t, out, "cycles=42")
}

func TestFormatCellVoltages(t *testing.T) {
	out := FormatCellVoltages([]float64{3.3, 3.301, 3.302, 3.303, 3.304})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Cell  5: 3.304V")
}

// ============================================================
// Validator Tests
// ============================================================

func anomalies(errs []ValidationError) []AnomalyType {
	var types []AnomalyType
	for _, e := range errs {
		types = append(types, e.Type)
	}
	return types
}

func TestValidateFrame_Valid(t *testing.T) {
	assert.Empty(t, ValidateFrame(buildCellInfo(defaultCellInfo())))
	assert.Empty(t, ValidateFrame(buildSettings(16, 100000)))
	assert.Empty(t, ValidateFrame(buildResponse(TagDeviceInfo, nil)))
}

func TestValidateFrame_Structure(t *testing.T) {
	short := buildCellInfo(defaultCellInfo())[:200]
	assert.Equal(t, []AnomalyType{AnomalyLength}, anomalies(ValidateFrame(short)))

	corrupt := buildCellInfo(defaultCellInfo())
	corrupt[10] ^= 0x01
	assert.Contains(t, anomalies(ValidateFrame(corrupt)), AnomalyChecksum)

	noPreamble := buildCellInfo(defaultCellInfo())
	noPreamble[0] = 0x00
	assert.Contains(t, anomalies(ValidateFrame(noPreamble)), AnomalyPreamble)

	assert.Contains(t, anomalies(ValidateFrame(buildResponse(0x42, nil))), AnomalyUnknownType)
}

func TestValidateFrame_Values(t *testing.T) {
	assert.Equal(t, []AnomalyType{AnomalyCellCount}, anomalies(ValidateFrame(buildSettings(60, 100000))))

	v := defaultCellInfo()
	v.mosTemperature = 2000
	v.charge = 150000
	errs := ValidateFrame(buildCellInfo(v))
	assert.Equal(t, []AnomalyType{AnomalyValue, AnomalyValue}, anomalies(errs))
	require.Len(t, errs, 2)
	assert.Equal(t, 2, errs[0].Details["sensor"])
	assert.InDelta(t, 200.0, errs[0].Details["celsius"], 1e-9)
	assert.InDelta(t, 150.0, errs[1].Details["charge"], 1e-9)
}

func TestValidationError_Error(t *testing.T) {
	errs := ValidateFrame(make([]byte, 10))
	require.NotEmpty(t, errs)
	var err error = &errs[0]
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "preamble", ve.Type.String())
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Record(t *testing.T) {
	s := NewStatistics()
	s.RecordFragment(20)
	s.RecordFragment(280)
	s.RecordFrame(NewFrame(buildCellInfo(defaultCellInfo())))
	s.RecordError(&ChecksumError{})
	s.RecordError(ErrResponseTimeout)
	s.RecordError(&CapacityMismatchError{Expected: 100, Actual: 99.5})
	s.RecordError(errors.New("unrelated"))

	assert.Equal(t, uint64(2), s.Fragments)
	assert.Equal(t, uint64(300), s.Bytes)
	assert.Equal(t, uint64(1), s.Frames)
	assert.Equal(t, uint64(1), s.FramesByType[TagCellInfo])
	assert.Equal(t, uint64(1), s.ChecksumErrors)
	assert.Equal(t, uint64(1), s.Timeouts)
	assert.Equal(t, uint64(1), s.CapacityMismatches)

	out := s.String()
	assert.Contains(t, out, "CELL_INFO:")
	assert.Contains(t, out, "Checksum Errors:")
}

func TestStatistics_CloneIsIndependent(t *testing.T) {
	s := NewStatistics()
	s.RecordFrame(NewFrame(buildSettings(16, 100000)))
	c := s.Clone()
	s.RecordFrame(NewFrame(buildSettings(16, 100000)))

	assert.Equal(t, uint64(1), c.FramesByType[TagSettings])
	assert.Equal(t, uint64(2), s.FramesByType[TagSettings])
}

// ============================================================
// CBOR Tests
// ============================================================

func TestSampleCBOR(t *testing.T) {
	f := NewFrame(buildCellInfo(defaultCellInfo()))
	s, err := DecodeSample(f, DeviceIdentity{Cells: 16, Capacity: 100})
	require.NoError(t, err)
	cells, err := DecodeCellVoltages(f, 16)
	require.NoError(t, err)

	data, err := EncodeSampleCBOR(s, cells)
	require.NoError(t, err)

	got, gotCells, err := DecodeSampleCBOR(data)
	require.NoError(t, err)
	assert.Equal(t, s.Timestamp.UnixMilli(), got.Timestamp.UnixMilli())
	assert.Equal(t, s.Voltage, got.Voltage)
	assert.Equal(t, s.Temperatures, got.Temperatures)
	assert.Equal(t, s.Cycles, got.Cycles)
	assert.Equal(t, cells, gotCells)
}

func TestDecodeSampleCBOR_Invalid(t *testing.T) {
	_, _, err := DecodeSampleCBOR(nil)
	assert.Error(t, err)
	_, _, err = DecodeSampleCBOR([]byte{0xFF, 0x00})
	assert.Error(t, err)
}
