// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Thermoquad/jkbms/internal/config"
	"github.com/Thermoquad/jkbms/internal/transport"
	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// OpenTransport creates the transport selected by the configuration and
// returns it with a human-readable description.
func OpenTransport(c *config.Config, log *zap.Logger) (jikong.Transport, string, error) {
	switch c.TransportKind() {
	case config.TransportWebSocket:
		if c.URL == "" {
			return nil, "", fmt.Errorf("--url is required for the ws transport")
		}
		password := ""
		if c.Username != "" {
			var err error
			password, err = transport.GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		t := &transport.WebSocket{
			URL:           c.URL,
			Username:      c.Username,
			Password:      password,
			SkipSSLVerify: c.NoSSLVerify,
			Logger:        log,
		}
		return t, fmt.Sprintf("WebSocket: %s", c.URL), nil

	case config.TransportSerial:
		if c.Port == "" {
			return nil, "", fmt.Errorf("--port is required for the serial transport")
		}
		t := &transport.Serial{BaudRate: c.Baud, Logger: log}
		return t, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil

	default:
		t := transport.NewBLE(c.ScanWindow, log)
		return t, fmt.Sprintf("Bluetooth: %s", c.Address), nil
	}
}

// NewClient builds an engine client for the configured device. Extra
// options are applied after the configured ones.
func NewClient(c *config.Config, log *zap.Logger, opts ...jikong.Option) (*jikong.Client, string, error) {
	address := c.DeviceAddress()
	if address == "" {
		return nil, "", fmt.Errorf("no device address: use --address, --port or --url")
	}

	t, info, err := OpenTransport(c, log)
	if err != nil {
		return nil, "", err
	}

	base := []jikong.Option{
		jikong.WithLogger(log),
		jikong.WithQueryTimeout(c.QueryTimeout),
		jikong.WithConnectTimeout(c.ConnectTimeout),
		jikong.WithRetry(c.EngineRetry()),
	}
	return jikong.New(t, address, append(base, opts...)...), info, nil
}

// ConnectClient builds a client and connects it
func ConnectClient(ctx context.Context, opts ...jikong.Option) (*jikong.Client, string, error) {
	client, info, err := NewClient(cfg, logger, opts...)
	if err != nil {
		return nil, "", err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, info, err
	}
	return client, info, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
