// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var cellsCmd = &cobra.Command{
	Use:   "cells",
	Short: "Print per-cell voltages",
	Long: `Connect to the BMS and print the voltage of every cell in physical order,
followed by the minimum, maximum and spread (delta).

With --watch, a new table is printed for every telemetry frame.`,
	RunE: runCells,
}

var cellsWatch bool

func init() {
	rootCmd.AddCommand(cellsCmd)
	cellsCmd.Flags().BoolVar(&cellsWatch, "watch", false, "Keep printing on every telemetry frame")
}

func runCells(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	client, _, err := ConnectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	for {
		voltages, err := client.FetchCellVoltages()
		if err != nil {
			return err
		}
		fmt.Print(jikong.FormatCellVoltages(voltages))
		fmt.Println(formatCellSpread(voltages))

		if !cellsWatch {
			return nil
		}
		fmt.Println()
		if _, err := client.Fetch(ctx, true); err != nil && !errors.Is(err, jikong.ErrCapacityMismatch) {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// formatCellSpread summarises the lowest and highest cell
func formatCellSpread(voltages []float64) string {
	if len(voltages) == 0 {
		return "  (no cells)"
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	loIdx, hiIdx := 0, 0
	for i, v := range voltages {
		if v < lo {
			lo, loIdx = v, i
		}
		if v > hi {
			hi, hiIdx = v, i
		}
	}
	return fmt.Sprintf("  Min: %.3fV (cell %d)  Max: %.3fV (cell %d)  Delta: %.0fmV",
		lo, loIdx+1, hi, hiIdx+1, (hi-lo)*1000)
}
