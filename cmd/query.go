// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var queryCmd = &cobra.Command{
	Use:   "query <opcode> <tag>",
	Short: "Send a command and dump the response frame",
	Long: `Send a command frame with the given opcode on an established connection
and wait for the next response frame carrying the given type tag.

Opcode and tag accept decimal or 0x-prefixed hex.

Examples:
  # Device info
  jkbms query 0x97 0x03 --address C8:47:8C:F7:AD:B4

  # Cell info
  jkbms query 0x96 0x02 --address C8:47:8C:F7:AD:B4`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	opcode, err := parseByte(args[0])
	if err != nil {
		return fmt.Errorf("opcode: %w", err)
	}
	tag, err := parseByte(args[1])
	if err != nil {
		return fmt.Errorf("tag: %w", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	client, _, err := ConnectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	fmt.Printf("Sending %s (0x%02X), waiting for 0x%02X...\n", jikong.FormatMessageType(opcode), opcode, tag)
	frame, err := client.Query(ctx, opcode, tag, cfg.QueryTimeout)
	if err != nil {
		return err
	}
	fmt.Print(jikong.FormatFrame(frame))
	return nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}
