// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/jkbms/internal/config"
	"github.com/Thermoquad/jkbms/internal/logging"
	"github.com/Thermoquad/jkbms/pkg/jikong"
)

var (
	cfgFile string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jkbms",
	Short: "JK BMS wireless protocol client",
	Long: `jkbms - A CLI tool for reading telemetry from JK battery management systems.

Connects to the BMS, runs the bootstrap queries that start the telemetry
stream and decodes pack voltage, current, charge, temperatures and per-cell
voltages.

Connection modes:
  Bluetooth LE: --address C8:47:8C:F7:AD:B4 [--scan-window 5s]
  Serial:       --port /dev/ttyUSB0 [--baud 115200]   (BLE-UART bridge)
  WebSocket:    --url ws://host/path [--username user] (network bridge)

Settings may also come from a config file (--config, JKBMS_CONFIG or
./jkbms.yaml) and JKBMS_* environment variables.

For WebSocket authentication, the password is read from the JKBMS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, toml or json)")
	flags.String("transport", "", "Transport: ble, serial or ws (default: inferred)")

	// Bluetooth LE flags
	flags.StringP("address", "a", "", "BMS Bluetooth address")
	flags.Duration("scan-window", 5*time.Second, "Bluetooth scan duration before each connect attempt")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device (BLE-UART bridge)")
	flags.IntP("baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Engine flags
	flags.Duration("connect-timeout", jikong.DefaultConnectTimeout, "Timeout of a single connect attempt")
	flags.Duration("query-timeout", jikong.DefaultQueryTimeout, "Timeout of a request/response exchange")
	flags.Int("retry-attempts", jikong.DefaultRetryConfig().Attempts, "Connect attempts before giving up")

	// Logging flags
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("log-file", "", "Also write JSON logs to this rotating file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
