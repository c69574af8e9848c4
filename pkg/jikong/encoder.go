// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

// BuildCommand creates a command frame with a zero length field.
//
// Wire layout:
//
//	AA 55 90 EB <opcode> <length> <value:4> <00 x9> <checksum>
func BuildCommand(opcode byte, value [4]byte) []byte {
	return BuildCommandWithLength(opcode, value, 0)
}

// BuildCommandWithLength creates a command frame with an explicit length
// field. Register writes use a non-zero length; queries do not.
func BuildCommandWithLength(opcode byte, value [4]byte, length byte) []byte {
	frame := make([]byte, CommandSize)
	copy(frame[0:4], CommandPreamble[:])
	frame[4] = opcode
	frame[5] = length
	copy(frame[6:10], value[:])
	// frame[10:19] stays zero
	frame[CommandSize-1] = Checksum(frame[:CommandSize-1])
	return frame
}
