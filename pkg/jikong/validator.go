// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"bytes"
	"fmt"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyPreamble AnomalyType = iota
	AnomalyLength
	AnomalyChecksum
	AnomalyUnknownType
	AnomalyCellCount
	AnomalyValue
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyPreamble:
		return "preamble"
	case AnomalyLength:
		return "length"
	case AnomalyChecksum:
		return "checksum"
	case AnomalyUnknownType:
		return "unknown_type"
	case AnomalyCellCount:
		return "cell_count"
	case AnomalyValue:
		return "value"
	default:
		return "unknown"
	}
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks raw frame bytes for structural anomalies and
// implausible telemetry. Returns an empty slice for a valid frame.
func ValidateFrame(data []byte) []ValidationError {
	errors := []ValidationError{}

	if !bytes.HasPrefix(data, ResponsePreamble[:]) {
		errors = append(errors, ValidationError{
			Type:    AnomalyPreamble,
			Message: "Frame does not start with response preamble",
		})
	}

	if len(data) != ResponseSize {
		errors = append(errors, ValidationError{
			Type:    AnomalyLength,
			Message: fmt.Sprintf("Frame length mismatch: received=%d, expected=%d", len(data), ResponseSize),
			Details: map[string]interface{}{"received": len(data), "expected": ResponseSize},
		})
		return errors
	}

	if err := VerifyChecksum(data); err != nil {
		errors = append(errors, ValidationError{
			Type:    AnomalyChecksum,
			Message: err.Error(),
		})
	}

	f := NewFrame(data)
	switch f.Type() {
	case TagSettings:
		errors = append(errors, validateSettings(f)...)
	case TagCellInfo:
		errors = append(errors, validateCellInfo(f)...)
	case TagDeviceInfo:
	default:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownType,
			Message: fmt.Sprintf("Unknown frame type 0x%02X", f.Type()),
			Details: map[string]interface{}{"type": f.Type()},
		})
	}

	return errors
}

func validateSettings(f *Frame) []ValidationError {
	if _, err := DecodeDeviceIdentity(f); err != nil {
		return []ValidationError{{
			Type:    AnomalyCellCount,
			Message: err.Error(),
		}}
	}
	return nil
}

func validateCellInfo(f *Frame) []ValidationError {
	errors := []ValidationError{}

	// Temperature sensors outside -40..120 °C are disconnected or corrupt
	for i, fd := range []Field{FieldTemperature0, FieldTemperature1, FieldMOSTemperature} {
		t, err := f.Field(fd)
		if err != nil {
			continue
		}
		if t < -40 || t > 120 {
			errors = append(errors, ValidationError{
				Type:    AnomalyValue,
				Message: fmt.Sprintf("Temperature sensor %d out of range: %.1f°C", i, t),
				Details: map[string]interface{}{"sensor": i, "celsius": t},
			})
		}
	}

	charge, err1 := f.Field(FieldCharge)
	full, err2 := f.Field(FieldChargeFull)
	if err1 == nil && err2 == nil && full > 0 && charge > full*1.1 {
		errors = append(errors, ValidationError{
			Type:    AnomalyValue,
			Message: fmt.Sprintf("Remaining charge %.3fAh exceeds full charge %.3fAh", charge, full),
			Details: map[string]interface{}{"charge": charge, "full": full},
		})
	}

	return errors
}
