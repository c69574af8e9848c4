// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/jkbms/internal/metrics"
	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var (
	monitorFormat   string
	monitorInterval time.Duration
	monitorCells    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream telemetry samples",
	Long: `Connect to the BMS and print a telemetry sample for every cell info frame.

The connection is re-established with the configured retry policy whenever it
is lost. Frames failing the capacity integrity check are logged and skipped.

Output formats:
  text - one line per sample
  cbor - a CBOR sequence of integer-keyed maps on stdout

With --metrics-addr, gauges for every sample field, per-cell voltages and
engine statistics are served on /metrics for Prometheus.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorFormat, "format", "text", "Output format: text or cbor")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Minimum time between printed samples (0 prints every frame)")
	monitorCmd.Flags().BoolVar(&monitorCells, "cells", false, "Include per-cell voltages")
	monitorCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
}

// sampleWriter renders samples in the selected format
type sampleWriter struct {
	w       io.Writer
	format  string
	cells   bool
	limiter *rate.Limiter
}

func newSampleWriter(w io.Writer, format string, cells bool, interval time.Duration) (*sampleWriter, error) {
	switch format {
	case "text", "cbor":
	default:
		return nil, fmt.Errorf("unknown format %q (use text or cbor)", format)
	}
	sw := &sampleWriter{w: w, format: format, cells: cells}
	if interval > 0 {
		sw.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return sw, nil
}

// write renders s unless the rate limit drops it
func (sw *sampleWriter) write(s jikong.Sample, cells []float64) error {
	if sw.limiter != nil && !sw.limiter.AllowN(s.Timestamp, 1) {
		return nil
	}
	if !sw.cells {
		cells = nil
	}

	if sw.format == "cbor" {
		data, err := jikong.EncodeSampleCBOR(s, cells)
		if err != nil {
			return err
		}
		_, err = sw.w.Write(data)
		return err
	}

	if _, err := fmt.Fprintln(sw.w, jikong.FormatSample(s)); err != nil {
		return err
	}
	if len(cells) > 0 {
		_, err := fmt.Fprint(sw.w, jikong.FormatCellVoltages(cells))
		return err
	}
	return nil
}

// sampleSink feeds samples to the metrics and the output writer. Samples
// failing the capacity check only update the statistics gauges.
type sampleSink struct {
	out   *sampleWriter
	bms   *metrics.BMSMetrics
	stats func() jikong.Statistics
}

func (k *sampleSink) handle(s jikong.Sample, cells []float64, sampleErr error) error {
	if k.bms != nil && k.stats != nil {
		k.bms.ObserveStatistics(k.stats())
	}
	if errors.Is(sampleErr, jikong.ErrCapacityMismatch) {
		return nil
	}
	if k.bms != nil {
		k.bms.ObserveSample(s)
		k.bms.ObserveCells(cells)
	}
	return k.out.write(s, cells)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	out, err := newSampleWriter(cmd.OutOrStdout(), monitorFormat, monitorCells, monitorInterval)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	client, connInfo, err := NewClient(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("monitoring", zap.String("connection", connInfo))

	var bms *metrics.BMSMetrics
	if cfg.Metrics.Addr != "" {
		reg := metrics.NewRegistry()
		bms = metrics.NewBMSMetrics(reg, client.Address())
		stop := serveMetrics(cfg.Metrics.Addr, metrics.Handler(reg))
		defer stop()
	}

	sink := &sampleSink{out: out, bms: bms, stats: client.Statistics}

	runner := &sessionRunner{
		client: client,
		log:    logger,
		handler: sessionHandler{
			onConnected: func(id jikong.DeviceIdentity) {
				logger.Info("streaming", zap.Stringer("identity", id))
				if bms != nil {
					bms.SetConnected(true)
				}
			},
			onSample: func(s jikong.Sample, cells []float64, sampleErr error) {
				if err := sink.handle(s, cells, sampleErr); err != nil {
					logger.Error("write sample", zap.Error(err))
					cancel()
				}
			},
			onLost: func(err error) {
				if bms != nil {
					bms.SetConnected(false)
				}
			},
		},
	}
	return runner.run(ctx)
}

// serveMetrics serves h on /metrics at addr and returns a stop function
func serveMetrics(addr string, h http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
