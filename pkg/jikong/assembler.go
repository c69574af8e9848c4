// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"bytes"
	"errors"
)

// Assembler reassembles notification fragments into response frames.
//
// Fragments arrive at arbitrary boundaries. A fragment starting with the
// response preamble begins a new frame and abandons any partial frame that
// was buffered. Once ResponseSize bytes are buffered the frame is checked
// against its trailer and either emitted or dropped.
//
// Assembler is not safe for concurrent use.
type Assembler struct {
	buffer []byte
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{
		buffer: make([]byte, 0, ResponseSize*2),
	}
}

// Reset discards any buffered bytes
func (a *Assembler) Reset() {
	a.buffer = a.buffer[:0]
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (a *Assembler) Buffered() int {
	return len(a.buffer)
}

// Feed appends a fragment and returns every frame it completed.
// Frames failing verification are dropped and reported through the returned
// error (a join of *ChecksumError values); the frames slice is valid even
// when the error is non-nil.
func (a *Assembler) Feed(fragment []byte) ([]*Frame, error) {
	if bytes.HasPrefix(fragment, ResponsePreamble[:]) {
		a.buffer = a.buffer[:0]
	}
	a.buffer = append(a.buffer, fragment...)

	var frames []*Frame
	var errs []error
	for len(a.buffer) >= ResponseSize {
		candidate := a.buffer[:ResponseSize]
		if err := VerifyChecksum(candidate); err != nil {
			errs = append(errs, err)
		} else {
			frames = append(frames, NewFrame(candidate))
		}
		a.keep(a.buffer[ResponseSize:])
	}

	return frames, errors.Join(errs...)
}

// keep retains bytes following a consumed frame only when they can be the
// start of the next one.
func (a *Assembler) keep(rest []byte) {
	if !startsFrame(rest) {
		a.buffer = a.buffer[:0]
		return
	}
	n := copy(a.buffer, rest)
	a.buffer = a.buffer[:n]
}

func startsFrame(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if len(b) < PreambleSize {
		return bytes.HasPrefix(ResponsePreamble[:], b)
	}
	return bytes.HasPrefix(b, ResponsePreamble[:])
}
