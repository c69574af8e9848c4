// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package jikong implements the client side of the JK BMS (JK02) wireless
// protocol.
//
// The device exposes one bidirectional characteristic. Commands are short
// fixed-size frames; responses are 300-byte frames delivered as notification
// fragments of arbitrary size. This package reassembles those fragments,
// verifies checksums, correlates responses with outstanding requests and
// decodes telemetry into typed values.
//
// The wireless transport itself is supplied by the caller through the
// Transport interface.
package jikong

import "time"

// Command frame layout
var CommandPreamble = [4]byte{0xAA, 0x55, 0x90, 0xEB}

// Response frame layout
var ResponsePreamble = [4]byte{0x55, 0xAA, 0xEB, 0x90}

// Frame sizes
const (
	CommandSize  = 20  // preamble(4) + opcode + length + value(4) + padding(9) + checksum
	ResponseSize = 300 // fixed size of every response frame
	PreambleSize = 4
	TypeOffset   = 4 // response type tag
)

// Command opcodes (Client → BMS)
const (
	OpcodeCellInfo   = 0x96 // start the cell info (0x02) stream
	OpcodeDeviceInfo = 0x97
)

// Response type tags (BMS → Client)
const (
	TagSettings   = 0x01 // carries cell count and rated capacity
	TagCellInfo   = 0x02 // telemetry, pushed continuously after OpcodeCellInfo
	TagDeviceInfo = 0x03
)

// Settings frame (TagSettings) offsets
const (
	offsetCellCount = 114
	offsetCapacity  = 130
)

// Cell info frame (TagCellInfo) offsets
const (
	offsetCellVoltages   = 6
	offsetVoltage        = 118
	offsetCurrent        = 126
	offsetTemperature0   = 130
	offsetTemperature1   = 132
	offsetMOSTemperature = 134
	offsetBalanceCurrent = 138
	offsetCharge         = 142
	offsetChargeFull     = 146
	offsetCycles         = 150
)

// MaxCells is the largest cell count accepted from a settings frame
const MaxCells = 48

// CharacteristicUUID is the notify/write characteristic used by JK BMS
// Bluetooth modules.
const CharacteristicUUID = "0000ffe1-0000-1000-8000-00805f9b34fb"

// Engine defaults
const (
	DefaultQueryTimeout   = 8 * time.Second
	DefaultConnectTimeout = 20 * time.Second
)
