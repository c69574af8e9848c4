// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad
//
// jkbms - JK BMS Wireless Protocol Client
//
// A CLI tool for connecting to JK battery management systems over Bluetooth
// LE, serial or a WebSocket bridge and reading telemetry in human-readable
// form.

package main

import (
	"os"

	"github.com/Thermoquad/jkbms/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
