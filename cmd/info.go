// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Connect once and print identity and a telemetry sample",
	Long: `Connect to the BMS, run the bootstrap queries and print the device
identity (cell count, rated capacity), one telemetry sample, the per-cell
voltages and the session statistics, then disconnect.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	client, connInfo, err := ConnectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	id, _ := client.Identity()
	fmt.Printf("jkbms - Device Info\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Device:     %s\n", client.Address())
	fmt.Printf("Identity:   %s\n\n", id)

	sample, err := client.Fetch(ctx, false)
	switch {
	case errors.Is(err, jikong.ErrCapacityMismatch):
		fmt.Printf("WARNING: %v\n", err)
	case err != nil:
		return err
	}
	fmt.Println(jikong.FormatSample(sample))

	voltages, err := client.FetchCellVoltages()
	if err != nil {
		return err
	}
	fmt.Print(jikong.FormatCellVoltages(voltages))

	stats := client.Statistics()
	fmt.Printf("\n%s", stats.String())
	return nil
}
