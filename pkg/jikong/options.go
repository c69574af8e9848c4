// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config holds the client configuration.
type Config struct {
	// Logger receives engine events (default: no-op)
	Logger *zap.Logger

	// QueryTimeout bounds every request/response exchange and blocking fetch
	QueryTimeout time.Duration

	// ConnectTimeout is passed to Transport.Connect
	ConnectTimeout time.Duration

	// Retry is the connect retry policy
	Retry RetryConfig

	// Characteristic is the notify/write characteristic
	Characteristic string

	// Sleep waits between connect attempts
	Sleep func(ctx context.Context, d time.Duration) error

	// FrameHook, if set, sees every assembled frame or frame error
	FrameHook func(f *Frame, err error)
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:         zap.NewNop(),
		QueryTimeout:   DefaultQueryTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		Retry:          DefaultRetryConfig(),
		Characteristic: CharacteristicUUID,
		Sleep:          sleepContext,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithLogger sets the logger.
//
// Example:
//
//	client := jikong.New(transport, addr, jikong.WithLogger(logger))
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithQueryTimeout sets the response timeout for queries and blocking fetches.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.QueryTimeout = timeout
		}
	}
}

// WithConnectTimeout sets the timeout of a single connect attempt.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ConnectTimeout = timeout
		}
	}
}

// WithRetry sets the connect retry policy.
//
// Example:
//
//	client := jikong.New(transport, addr, jikong.WithRetry(jikong.RetryConfig{
//	    Attempts:     3,
//	    InitialDelay: time.Second,
//	    Multiplier:   2,
//	}))
func WithRetry(retry RetryConfig) Option {
	return func(c *Config) {
		if retry.Attempts > 0 {
			c.Retry = retry
		}
	}
}

// WithCharacteristic overrides the characteristic UUID.
func WithCharacteristic(uuid string) Option {
	return func(c *Config) {
		if uuid != "" {
			c.Characteristic = uuid
		}
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}

// WithFrameHook registers a callback for every assembled frame and every
// frame error. It runs on the notification path and must not block.
func WithFrameHook(hook func(f *Frame, err error)) Option {
	return func(c *Config) {
		c.FrameHook = hook
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
