// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 8*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 8, cfg.Retry.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 1.5, cfg.Retry.Multiplier)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, TransportBLE, cfg.TransportKind())
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jkbms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: "C8:47:8C:F7:AD:B4"
query_timeout: 3s
retry:
  attempts: 4
logging:
  level: debug
`), 0o644))

	t.Setenv("JKBMS_RETRY_MULTIPLIER", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("query-timeout", "", "")
	require.NoError(t, flags.Parse([]string{"--query-timeout=5s"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "C8:47:8C:F7:AD:B4", cfg.DeviceAddress())
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 4, cfg.Retry.Attempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, "debug", cfg.Logging.Level)

	retry := cfg.EngineRetry()
	assert.Equal(t, 4, retry.Attempts)
	assert.Equal(t, 200*time.Millisecond, retry.InitialDelay)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_InvalidTransport(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JKBMS_TRANSPORT", "carrier-pigeon")
	_, err := Load("", nil)
	assert.Error(t, err)
}

func TestTransportKind(t *testing.T) {
	tests := []struct {
		cfg  Config
		kind string
		addr string
	}{
		{Config{Address: "AA"}, TransportBLE, "AA"},
		{Config{Port: "/dev/ttyUSB0"}, TransportSerial, "/dev/ttyUSB0"},
		{Config{URL: "ws://bridge/bms"}, TransportWebSocket, "ws://bridge/bms"},
		{Config{Transport: TransportBLE, Address: "AA", Port: "/dev/ttyUSB0"}, TransportBLE, "AA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.cfg.TransportKind())
		assert.Equal(t, tt.addr, tt.cfg.DeviceAddress())
	}
}

func TestLoad_LoggingFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("metrics-addr", "", "")
	flags.Int("retry-attempts", 8, "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug", "--metrics-addr=:9100", "--retry-attempts=3"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, 3, cfg.Retry.Attempts)
}
