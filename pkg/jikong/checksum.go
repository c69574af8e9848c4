// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

// Checksum returns the sum of all bytes modulo 256
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// VerifyChecksum checks the trailer byte of a frame against the checksum of
// every byte before it.
func VerifyChecksum(frame []byte) error {
	if len(frame) < 1 {
		return &MalformedFrameError{Offset: 0, Width: 1, Length: 0}
	}
	last := len(frame) - 1
	computed := Checksum(frame[:last])
	if computed != frame[last] {
		return &ChecksumError{Computed: computed, Expected: frame[last]}
	}
	return nil
}
