// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover reachable devices",
	Long: `Run device discovery on the selected transport and list what was found.

Transports:
  Bluetooth LE: listen for advertisements for --scan-window
  Serial:       list serial ports present on the host
  WebSocket:    report the configured bridge URL

If --address is set, the scan also reports whether that device was seen.

Exit codes:
  0 - Discovery successful (at least one device found, and the target if set)
  1 - Discovery failed (no devices, or target not seen)
  2 - Transport error`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	t, connInfo, err := OpenTransport(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("jkbms - Device Discovery\n")
	fmt.Printf("Transport: %s\n\n", connInfo)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	found, err := t.Discover(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DISCOVERY FAILED: %v\n", err)
		os.Exit(2)
	}
	sort.Strings(found)

	target := cfg.DeviceAddress()
	seen := false
	for _, addr := range found {
		marker := " "
		if target != "" && strings.EqualFold(addr, target) {
			marker = "*"
			seen = true
		}
		fmt.Printf(" %s %s\n", marker, addr)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d\n", len(found))

	if len(found) == 0 {
		fmt.Printf("No devices discovered. Check transport and device power.\n")
		os.Exit(1)
	}
	if target != "" {
		if !seen {
			fmt.Printf("Target %s not seen.\n", target)
			os.Exit(1)
		}
		fmt.Printf("Target %s seen.\n", target)
	}
	return nil
}
