// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package config loads jkbms settings from defaults, an optional config
// file, JKBMS_ environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "JKBMS"

// Transport kinds
const (
	TransportBLE       = "ble"
	TransportSerial    = "serial"
	TransportWebSocket = "ws"
)

// RetryConfig is the connect retry policy
type RetryConfig struct {
	Attempts     int           `mapstructure:"attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// LumberjackConfig configures the rotating log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets level, format and optional file output
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig sets the Prometheus listen address; empty disables it
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the top level configuration
type Config struct {
	Transport      string        `mapstructure:"transport"`
	Address        string        `mapstructure:"address"`
	Port           string        `mapstructure:"port"`
	Baud           int           `mapstructure:"baud"`
	URL            string        `mapstructure:"url"`
	Username       string        `mapstructure:"username"`
	NoSSLVerify    bool          `mapstructure:"no_ssl_verify"`
	ScanWindow     time.Duration `mapstructure:"scan_window"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	Retry          RetryConfig   `mapstructure:"retry"`
	Logging        LoggingConfig `mapstructure:"logging"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

// Load reads configuration. path may be empty, in which case JKBMS_CONFIG or
// ./jkbms.{yaml,toml,json} is used if present. Flags, if non-nil, are bound
// by name with dashes mapped to underscores (see flagKeys for exceptions) and
// override every other source when set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("jkbms")
	}

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is allowed
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps flags whose names do not follow the key
var flagKeys = map[string]string{
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"log-file":       "logging.file.filename",
	"metrics-addr":   "metrics.addr",
	"retry-attempts": "retry.attempts",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", "")
	v.SetDefault("address", "")
	v.SetDefault("port", "")
	v.SetDefault("baud", 115200)
	v.SetDefault("url", "")
	v.SetDefault("username", "")
	v.SetDefault("no_ssl_verify", false)
	v.SetDefault("scan_window", "5s")
	v.SetDefault("connect_timeout", jikong.DefaultConnectTimeout.String())
	v.SetDefault("query_timeout", jikong.DefaultQueryTimeout.String())

	retry := jikong.DefaultRetryConfig()
	v.SetDefault("retry.attempts", retry.Attempts)
	v.SetDefault("retry.initial_delay", retry.InitialDelay.String())
	v.SetDefault("retry.multiplier", retry.Multiplier)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.max_size", 10)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.addr", "")
}

// Validate checks value ranges and the transport kind
func (c *Config) Validate() error {
	switch c.Transport {
	case "", TransportBLE, TransportSerial, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q (use ble, serial or ws)", c.Transport)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.QueryTimeout <= 0 || c.ConnectTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// TransportKind returns the configured transport, inferring it from the
// connection settings when unset.
func (c *Config) TransportKind() string {
	switch {
	case c.Transport != "":
		return c.Transport
	case c.URL != "":
		return TransportWebSocket
	case c.Port != "":
		return TransportSerial
	default:
		return TransportBLE
	}
}

// DeviceAddress returns the address the engine dials for the selected
// transport: the BLE address, serial port or bridge URL.
func (c *Config) DeviceAddress() string {
	switch c.TransportKind() {
	case TransportSerial:
		if c.Port != "" {
			return c.Port
		}
	case TransportWebSocket:
		if c.URL != "" {
			return c.URL
		}
	}
	return c.Address
}

// EngineRetry converts the retry settings
func (c *Config) EngineRetry() jikong.RetryConfig {
	return jikong.RetryConfig{
		Attempts:     c.Retry.Attempts,
		InitialDelay: c.Retry.InitialDelay,
		Multiplier:   c.Retry.Multiplier,
	}
}
