// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"encoding/binary"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// ============================================================
// Frame Builders
// ============================================================

// buildResponse creates a valid response frame of the given tag. fill may
// write into the body; preamble, tag and checksum are set afterwards.
func buildResponse(tag byte, fill func(b []byte)) []byte {
	b := make([]byte, ResponseSize)
	for i := PreambleSize + 1; i < ResponseSize-1; i++ {
		b[i] = byte(i % 50)
	}
	if fill != nil {
		fill(b)
	}
	copy(b, ResponsePreamble[:])
	b[TypeOffset] = tag
	b[ResponseSize-1] = Checksum(b[:ResponseSize-1])
	return b
}

// buildSettings creates a settings frame announcing cells and capacity (mAh)
func buildSettings(cells byte, capacityMilli uint32) []byte {
	return buildResponse(TagSettings, func(b []byte) {
		b[offsetCellCount] = cells
		binary.LittleEndian.PutUint32(b[offsetCapacity:], capacityMilli)
	})
}

// cellInfo holds raw integer telemetry values for buildCellInfo
type cellInfo struct {
	cells          []uint16 // mV
	voltage        uint32   // mV
	current        int32    // mA
	temperatures   [2]int16 // 0.1 °C
	mosTemperature int16    // 0.1 °C
	balanceCurrent int16    // mA
	charge         uint32   // mAh
	chargeFull     uint32   // mAh
	cycles         uint32
}

func buildCellInfo(v cellInfo) []byte {
	return buildResponse(TagCellInfo, func(b []byte) {
		for i, mv := range v.cells {
			binary.LittleEndian.PutUint16(b[offsetCellVoltages+2*i:], mv)
		}
		binary.LittleEndian.PutUint32(b[offsetVoltage:], v.voltage)
		binary.LittleEndian.PutUint32(b[offsetCurrent:], uint32(v.current))
		binary.LittleEndian.PutUint16(b[offsetTemperature0:], uint16(v.temperatures[0]))
		binary.LittleEndian.PutUint16(b[offsetTemperature1:], uint16(v.temperatures[1]))
		binary.LittleEndian.PutUint16(b[offsetMOSTemperature:], uint16(v.mosTemperature))
		binary.LittleEndian.PutUint16(b[offsetBalanceCurrent:], uint16(v.balanceCurrent))
		binary.LittleEndian.PutUint32(b[offsetCharge:], v.charge)
		binary.LittleEndian.PutUint32(b[offsetChargeFull:], v.chargeFull)
		binary.LittleEndian.PutUint32(b[offsetCycles:], v.cycles)
	})
}

// defaultCellInfo is a discharging 16 cell, 100 Ah pack
func defaultCellInfo() cellInfo {
	cells := make([]uint16, 16)
	for i := range cells {
		cells[i] = 3300 + uint16(i)
	}
	return cellInfo{
		cells:          cells,
		voltage:        53123,
		current:        -12500,
		temperatures:   [2]int16{215, -35},
		mosTemperature: 301,
		balanceCurrent: -20,
		charge:         80250,
		chargeFull:     100000,
		cycles:         42,
	}
}

// split cuts data into fragments of at most n bytes
func split(data []byte, n int) [][]byte {
	var out [][]byte
	for len(data) > n {
		out = append(out, data[:n])
		data = data[n:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// ============================================================
// Fuzz Helpers
// ============================================================

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}
