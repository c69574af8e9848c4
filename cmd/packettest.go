// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid telemetry frame",
	Long: `Connect and wait for a valid cell info frame until timeout.

This command connects with a single attempt, runs the bootstrap queries and
waits for a complete telemetry frame that passes the checksum and decodes
against the device identity.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to the BMS or a bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(packetTestTimeout) * time.Second

	fmt.Printf("jkbms - Frame Test\n")
	fmt.Printf("Device: %s\n", cfg.DeviceAddress())
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid telemetry frame...\n\n")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, connInfo, err := ConnectClient(ctx,
		jikong.WithRetry(jikong.RetryConfig{Attempts: 1}),
		jikong.WithQueryTimeout(timeout),
	)
	if err != nil {
		if errors.Is(err, jikong.ErrResponseTimeout) || errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Disconnect()

	sample, err := client.Fetch(ctx, true)
	if err != nil && !errors.Is(err, jikong.ErrCapacityMismatch) {
		client.Disconnect()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds: %v\n", packetTestTimeout, err)
		os.Exit(1)
	}

	id, _ := client.Identity()
	frame, _ := client.LastFrame(jikong.TagCellInfo)
	fmt.Printf("SUCCESS: Received valid frame\n")
	fmt.Printf("  Connection: %s\n", connInfo)
	fmt.Printf("  Type: %s (0x%02X)\n", jikong.FormatMessageType(frame.Type()), frame.Type())
	fmt.Printf("  Length: %d bytes\n", frame.Len())
	fmt.Printf("  Checksum: 0x%02X\n", frame.Bytes()[frame.Len()-1])
	fmt.Printf("  Identity: %s\n", id)
	fmt.Printf("  Sample: %s\n", jikong.FormatSample(sample))
	if err != nil {
		fmt.Printf("  WARNING: %v\n", err)
	}
	return nil
}
