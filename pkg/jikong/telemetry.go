// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"fmt"
	"time"
)

// Settings frame fields
var (
	FieldCellCount = Field{Offset: offsetCellCount, Width: 1}
	FieldCapacity  = Field{Offset: offsetCapacity, Width: 4, Divisor: 1000}
)

// Cell info frame fields
var (
	FieldVoltage        = Field{Offset: offsetVoltage, Width: 4, Divisor: 1000}
	FieldCurrent        = Field{Offset: offsetCurrent, Width: 4, Signed: true, Divisor: 1000}
	FieldTemperature0   = Field{Offset: offsetTemperature0, Width: 2, Signed: true, Divisor: 10}
	FieldTemperature1   = Field{Offset: offsetTemperature1, Width: 2, Signed: true, Divisor: 10}
	FieldMOSTemperature = Field{Offset: offsetMOSTemperature, Width: 2, Signed: true, Divisor: 10}
	FieldBalanceCurrent = Field{Offset: offsetBalanceCurrent, Width: 2, Signed: true, Divisor: 1000}
	FieldCharge         = Field{Offset: offsetCharge, Width: 4, Divisor: 1000}
	FieldChargeFull     = Field{Offset: offsetChargeFull, Width: 4, Divisor: 1000}
	FieldCycles         = Field{Offset: offsetCycles, Width: 4}
)

// CellVoltageField returns the field of cell i (0-based)
func CellVoltageField(i int) Field {
	return Field{Offset: offsetCellVoltages + 2*i, Width: 2, Divisor: 1000}
}

// DeviceIdentity is learned once per connection from the settings frame
type DeviceIdentity struct {
	Cells    int
	Capacity float64 // rated capacity, Ah
}

func (id DeviceIdentity) String() string {
	return fmt.Sprintf("%d cells, %.3f Ah", id.Cells, id.Capacity)
}

// Sample is one decoded telemetry snapshot
type Sample struct {
	Timestamp      time.Time
	Voltage        float64    // pack voltage, V
	Current        float64    // A, negative while discharging
	Charge         float64    // remaining charge, Ah
	ChargeFull     float64    // full charge capacity, Ah
	Temperatures   [2]float64 // °C
	MOSTemperature float64    // °C
	BalanceCurrent float64    // A
	Cycles         uint32
}

// fieldReader decodes a run of fields, keeping the first error
type fieldReader struct {
	frame *Frame
	err   error
}

func (r *fieldReader) read(fd Field) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.frame.Field(fd)
	if err != nil {
		r.err = err
	}
	return v
}

// DecodeDeviceIdentity reads cell count and rated capacity from a settings
// frame. The cell count must lie in 1..MaxCells.
func DecodeDeviceIdentity(f *Frame) (DeviceIdentity, error) {
	r := fieldReader{frame: f}
	cells := int(r.read(FieldCellCount))
	capacity := r.read(FieldCapacity)
	if r.err != nil {
		return DeviceIdentity{}, r.err
	}

	if cells <= 0 || cells > MaxCells {
		return DeviceIdentity{}, &IdentityError{Cells: cells}
	}
	return DeviceIdentity{Cells: cells, Capacity: capacity}, nil
}

// DecodeSample decodes a cell info frame.
//
// The full charge field must equal the rated capacity of id. On mismatch the
// decoded sample is still returned together with a *CapacityMismatchError so
// callers may log it and wait for the next frame.
func DecodeSample(f *Frame, id DeviceIdentity) (Sample, error) {
	r := fieldReader{frame: f}
	s := Sample{
		Timestamp:      f.Timestamp(),
		Voltage:        r.read(FieldVoltage),
		Current:        r.read(FieldCurrent),
		Temperatures:   [2]float64{r.read(FieldTemperature0), r.read(FieldTemperature1)},
		MOSTemperature: r.read(FieldMOSTemperature),
		BalanceCurrent: r.read(FieldBalanceCurrent),
		Charge:         r.read(FieldCharge),
		ChargeFull:     r.read(FieldChargeFull),
		Cycles:         uint32(r.read(FieldCycles)),
	}
	if r.err != nil {
		return Sample{}, r.err
	}

	if s.ChargeFull != id.Capacity {
		return s, &CapacityMismatchError{Expected: id.Capacity, Actual: s.ChargeFull}
	}
	return s, nil
}

// DecodeCellVoltages returns the voltage of each cell in physical order
func DecodeCellVoltages(f *Frame, cells int) ([]float64, error) {
	r := fieldReader{frame: f}
	voltages := make([]float64, cells)
	for i := range voltages {
		voltages[i] = r.read(CellVoltageField(i))
	}
	if r.err != nil {
		return nil, r.err
	}
	return voltages, nil
}
