// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"math"
	"time"
)

// RetryConfig defines the connect retry policy
type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns 8 attempts with 0.2s × 1.5^attempt backoff
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     8,
		InitialDelay: 200 * time.Millisecond,
		Multiplier:   1.5,
	}
}

// RetryDelay returns the sleep after failed attempt N (1-based)
func RetryDelay(cfg RetryConfig, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 || attempt < 1 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	return time.Duration(delay)
}
