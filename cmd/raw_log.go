// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Connect to the BMS and display every reassembled response frame as it
arrives, with timestamp, type and a hex dump.

Frames failing the checksum are reported as errors. Structural or value
anomalies found by the frame validator are listed under the frame.

Supports Bluetooth LE, serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var mu sync.Mutex
	hook := func(f *jikong.Frame, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			return
		}
		fmt.Print(jikong.FormatFrame(f))
		for _, v := range jikong.ValidateFrame(f.Bytes()) {
			fmt.Printf("  [%s] %s\n", v.Type, v.Message)
		}
	}

	client, connInfo, err := ConnectClient(ctx, jikong.WithFrameHook(hook))
	if err != nil {
		return err
	}
	defer client.Disconnect()

	mu.Lock()
	fmt.Printf("jkbms - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")
	mu.Unlock()

	<-ctx.Done()

	stats := client.Statistics()
	fmt.Printf("\n%s", stats.String())
	return nil
}
