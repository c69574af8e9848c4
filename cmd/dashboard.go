// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI showing live BMS telemetry",
	Long: `Display live BMS telemetry in an interactive terminal UI.

Features:
  - Pack voltage, current and state of charge
  - Per-cell voltages with min/max spread
  - Engine statistics (frames, checksum errors, timeouts)
  - Event logging
  - Automatic reconnection on connection loss

Console logging is suppressed while the TUI owns the screen; a configured
log file still receives engine logs.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	log := zap.NewNop()
	if cfg.Logging.File.Filename != "" {
		log = logger
	}

	var p *tea.Program
	hook := func(f *jikong.Frame, err error) {
		if err != nil && p != nil {
			p.Send(frameErrorMsg{err: err})
		}
	}

	client, connInfo, err := NewClient(cfg, log, jikong.WithFrameHook(hook))
	if err != nil {
		return err
	}

	m := initialDashboardModel(connInfo, client.Statistics)
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	runner := &sessionRunner{
		client: client,
		log:    log,
		handler: sessionHandler{
			onConnected: func(id jikong.DeviceIdentity) {
				p.Send(connectedMsg{identity: id})
			},
			onSample: func(s jikong.Sample, cells []float64, sampleErr error) {
				p.Send(sampleMsg{sample: s, cells: cells, err: sampleErr})
			},
			onLost: func(err error) {
				p.Send(connectionLostMsg{err: err})
			},
		},
	}

	runErr := make(chan error, 1)
	go func() {
		err := runner.run(ctx)
		if err != nil {
			p.Send(connectionLostMsg{err: err})
			p.Quit()
		}
		runErr <- err
	}()

	_, tuiErr := p.Run()
	interrupted := ctx.Err() != nil
	cancel()
	if err := <-runErr; err != nil {
		return err
	}
	if tuiErr != nil && !interrupted {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}
	return nil
}
