// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// serialReadTimeout bounds a single port read so Close is noticed
const serialReadTimeout = 200 * time.Millisecond

// ByteConn adapts a byte stream such as a serial port. Each ReadFragment
// returns the bytes of one underlying read.
type ByteConn struct {
	rwc io.ReadWriteCloser
	buf []byte
}

// NewByteConn wraps rwc
func NewByteConn(rwc io.ReadWriteCloser) *ByteConn {
	return &ByteConn{rwc: rwc, buf: make([]byte, 512)}
}

func (s *ByteConn) ReadFragment() ([]byte, error) {
	for {
		n, err := s.rwc.Read(s.buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// read timeout with nothing pending; a closed port reports an error
			continue
		}
		out := make([]byte, n)
		copy(out, s.buf[:n])
		return out, nil
	}
}

func (s *ByteConn) Write(p []byte) error {
	_, err := s.rwc.Write(p)
	return err
}

func (s *ByteConn) Close() error {
	return s.rwc.Close()
}

// OpenSerialConn opens a serial port connection
func OpenSerialConn(portName string, baudRate int) (*ByteConn, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return NewByteConn(port), nil
}

// Serial reaches the BMS through a UART bridge. The port name is the device
// address.
type Serial struct {
	BaudRate int
	Logger   *zap.Logger
}

// Discover lists the serial ports present on the host
func (s *Serial) Discover(ctx context.Context) ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Connect opens the port named address
func (s *Serial) Connect(ctx context.Context, address string, timeout time.Duration) (jikong.Link, error) {
	conn, err := OpenSerialConn(address, s.BaudRate)
	if err != nil {
		return nil, err
	}
	return NewStreamLink(conn, s.Logger), nil
}

var _ jikong.Transport = (*Serial)(nil)
