// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// maxConsecutiveTimeouts ends a session whose telemetry stream stalled
const maxConsecutiveTimeouts = 3

// sessionHandler receives run loop events. Any field may be nil.
type sessionHandler struct {
	onConnected func(id jikong.DeviceIdentity)
	onSample    func(s jikong.Sample, cells []float64, err error)
	onLost      func(err error)
}

// sessionRunner keeps a client connected and streams samples until ctx is
// done. A lost session is reconnected with the client's retry policy; the
// runner only gives up when that policy is exhausted.
type sessionRunner struct {
	client  *jikong.Client
	log     *zap.Logger
	handler sessionHandler
}

func (r *sessionRunner) run(ctx context.Context) error {
	for {
		if err := r.client.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		id, _ := r.client.Identity()
		if r.handler.onConnected != nil {
			r.handler.onConnected(id)
		}

		err := r.stream(ctx)
		if derr := r.client.Disconnect(); derr != nil {
			r.log.Debug("disconnect", zap.Error(derr))
		}
		if ctx.Err() != nil {
			return nil
		}

		r.log.Warn("session lost, reconnecting", zap.Error(err))
		if r.handler.onLost != nil {
			r.handler.onLost(err)
		}
	}
}

// stream delivers samples until the session fails
func (r *sessionRunner) stream(ctx context.Context) error {
	timeouts := 0
	for {
		sample, err := r.client.Fetch(ctx, true)
		switch {
		case err == nil, errors.Is(err, jikong.ErrCapacityMismatch):
			timeouts = 0
		case errors.Is(err, jikong.ErrResponseTimeout):
			timeouts++
			if timeouts >= maxConsecutiveTimeouts {
				return fmt.Errorf("telemetry stalled: %w", err)
			}
			continue
		default:
			return err
		}

		cells, cerr := r.client.FetchCellVoltages()
		if cerr != nil {
			r.log.Debug("cell voltages", zap.Error(cerr))
		}
		if r.handler.onSample != nil {
			r.handler.onSample(sample, cells, err)
		}
	}
}
