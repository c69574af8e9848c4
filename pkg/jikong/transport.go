// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"context"
	"time"
)

// Transport discovers and connects to devices.
// Implementations live outside this package (BLE, serial bridge, WebSocket
// bridge, test fakes).
type Transport interface {
	// Discover returns the addresses currently visible to the transport
	Discover(ctx context.Context) ([]string, error)

	// Connect opens a link to address. On failure the returned link, if
	// non-nil, is disconnected by the caller.
	Connect(ctx context.Context, address string, timeout time.Duration) (Link, error)
}

// Link is one open connection to a device
type Link interface {
	// Subscribe delivers notification fragments of characteristic to handler.
	// Calls to handler must not overlap.
	Subscribe(characteristic string, handler func([]byte)) error
	Unsubscribe(characteristic string) error
	Write(characteristic string, data []byte) error
	Disconnect() error
}
