// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package transport provides jikong.Transport implementations for a JK BMS
// reached over Bluetooth LE, a serial bridge or a WebSocket bridge.
package transport

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// ErrConnectionClosed is returned when using a link after it was closed
var ErrConnectionClosed = errors.New("connection closed")

// Conn carries notification fragments over a byte-stream bridge. Each
// ReadFragment returns one fragment as it arrived.
type Conn interface {
	ReadFragment() ([]byte, error)
	Write(p []byte) error
	Close() error
}

// StreamLink adapts a Conn to jikong.Link. A bridge exposes exactly one
// characteristic, so the characteristic argument is only recorded.
type StreamLink struct {
	conn Conn
	log  *zap.Logger

	mu             sync.Mutex
	handler        func([]byte)
	characteristic string
	closed         bool
	done           chan struct{}
}

// NewStreamLink starts reading from conn. Fragments received before
// Subscribe are discarded.
func NewStreamLink(conn Conn, log *zap.Logger) *StreamLink {
	if log == nil {
		log = zap.NewNop()
	}
	l := &StreamLink{
		conn: conn,
		log:  log,
		done: make(chan struct{}),
	}
	go l.readLoop()
	return l
}

func (l *StreamLink) readLoop() {
	defer close(l.done)
	for {
		data, err := l.conn.ReadFragment()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if !closed {
				l.log.Warn("bridge read failed", zap.Error(err))
			}
			return
		}
		if len(data) == 0 {
			continue
		}

		l.mu.Lock()
		handler := l.handler
		l.mu.Unlock()
		if handler != nil {
			handler(data)
		}
	}
}

// Done is closed once the read loop exits
func (l *StreamLink) Done() <-chan struct{} {
	return l.done
}

func (l *StreamLink) Subscribe(characteristic string, handler func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrConnectionClosed
	}
	l.characteristic = characteristic
	l.handler = handler
	return nil
}

func (l *StreamLink) Unsubscribe(characteristic string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = nil
	return nil
}

func (l *StreamLink) Write(characteristic string, data []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}
	if err := l.conn.Write(data); err != nil {
		return fmt.Errorf("bridge write: %w", err)
	}
	return nil
}

func (l *StreamLink) Disconnect() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.handler = nil
	l.mu.Unlock()
	return l.conn.Close()
}

var _ jikong.Link = (*StreamLink)(nil)
