// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps discovery, connect, subscribe and write failures.
	ErrTransport = errors.New("transport error")

	// ErrChecksum is reported for a reassembled frame whose trailer does not
	// match. The frame is dropped; later frames are unaffected.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrMalformedFrame is returned when a field lies outside the frame.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrAlreadyWaiting is returned when a second waiter is registered for a
	// response type that already has one.
	ErrAlreadyWaiting = errors.New("already waiting for response")

	// ErrResponseTimeout is returned when no matching frame arrives in time.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrInvalidDeviceIdentity aborts a connection whose settings frame
	// reports an impossible cell count.
	ErrInvalidDeviceIdentity = errors.New("invalid device identity")

	// ErrCapacityMismatch flags a telemetry frame whose full charge capacity
	// differs from the rated capacity read at connect. Recoverable.
	ErrCapacityMismatch = errors.New("capacity mismatch")

	// ErrNoDataYet is returned by a non-blocking fetch before the first
	// telemetry frame arrived.
	ErrNoDataYet = errors.New("no data yet")

	// ErrDisconnected is returned to waiters woken by a disconnect and to
	// callers using a client that is not connected.
	ErrDisconnected = errors.New("disconnected")

	// ErrConnectionFailed is returned after the connect retry budget is spent.
	ErrConnectionFailed = errors.New("connection failed")
)

// ChecksumError describes a frame that failed checksum verification.
type ChecksumError struct {
	Computed byte
	Expected byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: computed 0x%02X, trailer 0x%02X", e.Computed, e.Expected)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksum }

// MalformedFrameError describes an out of range field access.
type MalformedFrameError struct {
	Offset int
	Width  int
	Length int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: field at offset %d width %d exceeds frame length %d",
		e.Offset, e.Width, e.Length)
}

func (e *MalformedFrameError) Is(target error) bool { return target == ErrMalformedFrame }

// CapacityMismatchError carries both capacities in Ah.
type CapacityMismatchError struct {
	Expected float64
	Actual   float64
}

func (e *CapacityMismatchError) Error() string {
	return fmt.Sprintf("capacity mismatch: frame reports %.3f Ah, device rated %.3f Ah", e.Actual, e.Expected)
}

func (e *CapacityMismatchError) Is(target error) bool { return target == ErrCapacityMismatch }

// IdentityError reports an out of range cell count.
type IdentityError struct {
	Cells int
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("invalid device identity: cell count %d (valid 1-%d)", e.Cells, MaxCells)
}

func (e *IdentityError) Is(target error) bool { return target == ErrInvalidDeviceIdentity }

// ConnectionFailedError is returned once every connect attempt failed.
// It unwraps to the last attempt's error.
type ConnectionFailedError struct {
	Address  string
	Attempts int
	Err      error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("connect %s failed after %d attempts: %v", e.Address, e.Attempts, e.Err)
}

func (e *ConnectionFailedError) Is(target error) bool { return target == ErrConnectionFailed }

func (e *ConnectionFailedError) Unwrap() error { return e.Err }
