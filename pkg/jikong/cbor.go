// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// sampleRecord is the CBOR wire form of a sample, keyed by small integers
type sampleRecord struct {
	Timestamp      int64      `cbor:"0,keyasint"`
	Voltage        float64    `cbor:"1,keyasint"`
	Current        float64    `cbor:"2,keyasint"`
	Charge         float64    `cbor:"3,keyasint"`
	ChargeFull     float64    `cbor:"4,keyasint"`
	Temperatures   [2]float64 `cbor:"5,keyasint"`
	MOSTemperature float64    `cbor:"6,keyasint"`
	BalanceCurrent float64    `cbor:"7,keyasint"`
	Cycles         uint32     `cbor:"8,keyasint"`
	Cells          []float64  `cbor:"9,keyasint,omitempty"`
}

// EncodeSampleCBOR encodes a sample and optional cell voltages as a CBOR map
// with integer keys. The timestamp is Unix milliseconds.
func EncodeSampleCBOR(s Sample, cells []float64) ([]byte, error) {
	rec := sampleRecord{
		Timestamp:      s.Timestamp.UnixMilli(),
		Voltage:        s.Voltage,
		Current:        s.Current,
		Charge:         s.Charge,
		ChargeFull:     s.ChargeFull,
		Temperatures:   s.Temperatures,
		MOSTemperature: s.MOSTemperature,
		BalanceCurrent: s.BalanceCurrent,
		Cycles:         s.Cycles,
		Cells:          cells,
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sample: %w", err)
	}
	return data, nil
}

// DecodeSampleCBOR decodes a sample encoded by EncodeSampleCBOR
func DecodeSampleCBOR(data []byte) (Sample, []float64, error) {
	if len(data) == 0 {
		return Sample{}, nil, fmt.Errorf("empty CBOR payload")
	}
	var rec sampleRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return Sample{}, nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return Sample{
		Timestamp:      time.UnixMilli(rec.Timestamp),
		Voltage:        rec.Voltage,
		Current:        rec.Current,
		Charge:         rec.Charge,
		ChargeFull:     rec.ChargeFull,
		Temperatures:   rec.Temperatures,
		MOSTemperature: rec.MOSTemperature,
		BalanceCurrent: rec.BalanceCurrent,
		Cycles:         rec.Cycles,
	}, rec.Cells, nil
}
