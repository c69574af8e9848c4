// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// stopScanRetry is the pause between StopScan attempts
const stopScanRetry = 50 * time.Millisecond

// DefaultScanWindow is how long Discover listens for advertisements
const DefaultScanWindow = 5 * time.Second

// BLE reaches the BMS directly over Bluetooth LE
type BLE struct {
	Adapter    *bluetooth.Adapter
	ScanWindow time.Duration
	Logger     *zap.Logger

	enableOnce sync.Once
	enableErr  error

	mu      sync.Mutex
	results map[string]bluetooth.ScanResult
}

// NewBLE creates a BLE transport on the default adapter
func NewBLE(scanWindow time.Duration, log *zap.Logger) *BLE {
	if scanWindow <= 0 {
		scanWindow = DefaultScanWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BLE{
		Adapter:    bluetooth.DefaultAdapter,
		ScanWindow: scanWindow,
		Logger:     log,
		results:    make(map[string]bluetooth.ScanResult),
	}
}

func (b *BLE) enable() error {
	b.enableOnce.Do(func() {
		b.enableErr = b.Adapter.Enable()
	})
	return b.enableErr
}

// Discover scans for ScanWindow and returns every advertising address.
// The results are kept for the following Connect.
func (b *BLE) Discover(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %w", err)
	}

	found := make(map[string]bluetooth.ScanResult)
	var mu sync.Mutex

	ctx, cancel := context.WithTimeout(ctx, b.ScanWindow)
	defer cancel()
	scanDone := make(chan struct{})
	go b.stopScan(ctx, scanDone)

	err := b.Adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		mu.Lock()
		found[normalizeAddress(result.Address.String())] = result
		mu.Unlock()
	})
	close(scanDone)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	b.mu.Lock()
	b.results = found
	b.mu.Unlock()

	addresses := make([]string, 0, len(found))
	for addr, result := range found {
		b.Logger.Debug("advertisement", zap.String("address", addr), zap.String("name", result.LocalName()), zap.Int16("rssi", result.RSSI))
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// stopScan stops the scan once ctx is done. StopScan fails while the scan has
// not started yet, so it is retried until Scan returns.
func (b *BLE) stopScan(ctx context.Context, scanDone <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-scanDone:
		return
	}
	for {
		if err := b.Adapter.StopScan(); err == nil {
			return
		}
		select {
		case <-scanDone:
			return
		case <-time.After(stopScanRetry):
		}
	}
}

// Connect connects to an address seen by the last Discover and resolves its
// characteristics.
func (b *BLE) Connect(ctx context.Context, address string, timeout time.Duration) (jikong.Link, error) {
	b.mu.Lock()
	result, ok := b.results[normalizeAddress(address)]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("device %s not seen in last scan", address)
	}

	params := bluetooth.ConnectionParams{}
	if timeout > 0 {
		params.ConnectionTimeout = bluetooth.NewDuration(timeout)
	}
	device, err := b.Adapter.Connect(result.Address, params)
	if err != nil {
		return nil, err
	}

	link := &bleLink{device: device, chars: make(map[string]bluetooth.DeviceCharacteristic)}
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return link, fmt.Errorf("discover services: %w", err)
	}
	for _, service := range services {
		chars, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return link, fmt.Errorf("discover characteristics of %s: %w", service.UUID().String(), err)
		}
		for _, c := range chars {
			link.chars[strings.ToLower(c.UUID().String())] = c
		}
	}
	b.Logger.Debug("characteristics resolved", zap.String("address", address), zap.Int("count", len(link.chars)))
	return link, nil
}

func normalizeAddress(addr string) string {
	return strings.ToUpper(addr)
}

// bleLink is a connected BLE device
type bleLink struct {
	device bluetooth.Device
	chars  map[string]bluetooth.DeviceCharacteristic
}

func (l *bleLink) characteristic(uuid string) (bluetooth.DeviceCharacteristic, error) {
	c, ok := l.chars[strings.ToLower(uuid)]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not found", uuid)
	}
	return c, nil
}

func (l *bleLink) Subscribe(characteristic string, handler func([]byte)) error {
	c, err := l.characteristic(characteristic)
	if err != nil {
		return err
	}
	return c.EnableNotifications(handler)
}

func (l *bleLink) Unsubscribe(characteristic string) error {
	c, err := l.characteristic(characteristic)
	if err != nil {
		return err
	}
	return c.EnableNotifications(nil)
}

func (l *bleLink) Write(characteristic string, data []byte) error {
	c, err := l.characteristic(characteristic)
	if err != nil {
		return err
	}
	_, err = c.WriteWithoutResponse(data)
	return err
}

func (l *bleLink) Disconnect() error {
	return l.device.Disconnect()
}

var _ jikong.Transport = (*BLE)(nil)
