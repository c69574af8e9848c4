// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"bytes"
	"time"
)

// Frame is a complete, checksum-verified response frame
type Frame struct {
	data      []byte
	timestamp time.Time
}

// NewFrame creates a frame from a copy of data
func NewFrame(data []byte) *Frame {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Frame{data: buf, timestamp: time.Now()}
}

// Type returns the response type tag, or 0 for a frame too short to carry one
func (f *Frame) Type() byte {
	if len(f.data) <= TypeOffset {
		return 0
	}
	return f.data[TypeOffset]
}

// Bytes returns the raw frame bytes including preamble and trailer
func (f *Frame) Bytes() []byte {
	return f.data
}

// Len returns the frame length in bytes
func (f *Frame) Len() int {
	return len(f.data)
}

// Timestamp returns the time the frame was assembled
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// HasPreamble reports whether the frame starts with the response preamble
func (f *Frame) HasPreamble() bool {
	return bytes.HasPrefix(f.data, ResponsePreamble[:])
}

// Field decodes a single field of the frame
func (f *Frame) Field(fd Field) (float64, error) {
	return ParseField(f.data, fd)
}

// Field describes a little-endian integer field at a fixed offset
type Field struct {
	Offset int
	Width  int
	Signed bool
	// Divisor scales the raw integer (1000 turns milli-units into units);
	// zero leaves it unscaled
	Divisor float64
}

// ParseInt decodes a little-endian integer of width bytes at offset.
// Signed values are sign-extended from the field width.
func ParseInt(frame []byte, offset, width int, signed bool) (int64, error) {
	if offset < 0 || width < 1 || width > 8 || offset+width > len(frame) {
		return 0, &MalformedFrameError{Offset: offset, Width: width, Length: len(frame)}
	}

	var raw uint64
	for i := width - 1; i >= 0; i-- {
		raw = raw<<8 | uint64(frame[offset+i])
	}

	if signed && width < 8 {
		shift := uint(64 - width*8)
		return int64(raw<<shift) >> shift, nil
	}
	return int64(raw), nil
}

// ParseField decodes fd from frame and applies its divisor
func ParseField(frame []byte, fd Field) (float64, error) {
	raw, err := ParseInt(frame, fd.Offset, fd.Width, fd.Signed)
	if err != nil {
		return 0, err
	}

	var v float64
	if fd.Signed {
		v = float64(raw)
	} else {
		v = float64(uint64(raw))
	}
	if fd.Divisor != 0 {
		v /= fd.Divisor
	}
	return v, nil
}
