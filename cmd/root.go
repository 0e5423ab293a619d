// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Config and logging flags
	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string

	settings Settings
	logger   = zap.NewNop()
)

// Settings is the resolved configuration shared by every command
type Settings struct {
	Port        string      `mapstructure:"port"`
	Baud        int         `mapstructure:"baud"`
	URL         string      `mapstructure:"url"`
	Username    string      `mapstructure:"username"`
	NoSSLVerify bool        `mapstructure:"no-ssl-verify"`
	Log         LogSettings `mapstructure:"log"`
}

// LogSettings configures the diagnostic logger
type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAgeDays int    `mapstructure:"max-age-days"`
}

var rootCmd = &cobra.Command{
	Use:   "ibustat",
	Short: "FlySky iBus Protocol Analyzer",
	Long: `ibustat - A CLI tool for monitoring and analyzing FlySky iBus receiver traffic.

Decodes the 32-byte iBus servo frames (14 channels, checksum protected) sent by
FlySky receivers at 115200 baud, and provides commands for raw frame logging,
live monitoring, recording, simulation and Prometheus export.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Every flag can also be set in a config file (--config) or through an
IBUSTAT_ environment variable, e.g. IBUSTAT_PORT or IBUSTAT_LOG_LEVEL.

For WebSocket authentication, the password is read from the IBUSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	registerGlobalFlags(rootCmd)
}

func registerGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	// Serial connection flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Config and logging flags
	flags.StringVar(&cfgFile, "config", "", "Config file (YAML, TOML or JSON)")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "console", "Log format (console or json)")
	flags.StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated by size")
}

// newConfig layers defaults, the optional config file, IBUSTAT_ environment
// variables and explicitly set flags, in increasing priority
func newConfig(cmd *cobra.Command, path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("baud", 115200)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max-size-mb", 10)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.max-age-days", 28)

	v.SetEnvPrefix("IBUSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	bindings := map[string]string{
		"port":          "port",
		"baud":          "baud",
		"url":           "url",
		"username":      "username",
		"no-ssl-verify": "no-ssl-verify",
		"log.level":     "log-level",
		"log.format":    "log-format",
		"log.file":      "log-file",
	}
	for key, name := range bindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return v, nil
}

// loadSettings decodes the layered configuration
func loadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return s, nil
}

// initConfig resolves settings and installs the logger before any command runs
func initConfig(cmd *cobra.Command, args []string) error {
	v, err := newConfig(cmd, cfgFile)
	if err != nil {
		return err
	}

	s, err := loadSettings(v)
	if err != nil {
		return err
	}
	applySettings(s)

	l, err := newLogger(s.Log, true)
	if err != nil {
		return err
	}
	logger = l

	if cfgFile != "" {
		logger.Debug("loaded config file", zap.String("path", cfgFile))
	}
	return nil
}

func applySettings(s Settings) {
	settings = s
	portName = s.Port
	baudRate = s.Baud
	wsURL = s.URL
	wsUsername = s.Username
	wsNoSSLVerify = s.NoSSLVerify
}

// Execute runs the root command
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}
