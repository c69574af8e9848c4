// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"fmt"
	"strings"
)

// FormatMessageType returns the human-readable name for a response type tag
// or command opcode.
func FormatMessageType(msgType byte) string {
	switch msgType {
	// Responses
	case TagSettings:
		return "SETTINGS"
	case TagCellInfo:
		return "CELL_INFO"
	case TagDeviceInfo:
		return "DEVICE_INFO"

	// Commands
	case OpcodeCellInfo:
		return "CMD_CELL_INFO"
	case OpcodeDeviceInfo:
		return "CMD_DEVICE_INFO"

	default:
		return "UNKNOWN"
	}
}

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	msgType := f.Type()

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, FormatMessageType(msgType), msgType, f.Len())
	result += FormatHexDump(f.data)
	return result
}

// FormatHexDump renders data 16 bytes per row with offsets
func FormatHexDump(data []byte) string {
	var b strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&b, "  %04X:", offset)
		for _, v := range data[offset:end] {
			fmt.Fprintf(&b, " %02X", v)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSample formats a telemetry sample on a single line
func FormatSample(s Sample) string {
	return fmt.Sprintf("[%s] %.3fV %+.3fA %.3f/%.3fAh T=%.1f/%.1f°C MOS=%.1f°C bal=%+.3fA cycles=%d",
		s.Timestamp.Format("15:04:05.000"),
		s.Voltage, s.Current, s.Charge, s.ChargeFull,
		s.Temperatures[0], s.Temperatures[1], s.MOSTemperature,
		s.BalanceCurrent, s.Cycles)
}

// FormatCellVoltages formats per-cell voltages, four per row
func FormatCellVoltages(voltages []float64) string {
	var b strings.Builder
	for i, v := range voltages {
		fmt.Fprintf(&b, "  Cell %2d: %.3fV", i+1, v)
		if i%4 == 3 || i == len(voltages)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
