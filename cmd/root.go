// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/emvstat/internal/config"
	"github.com/Thermoquad/emvstat/internal/logging"
	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

var (
	// Settings flags
	configPath  string
	profileName string
	logLevel    string
	logFormat   string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var (
	cfg    = config.Default()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "emvstat",
	Short: "EMV QR Payload Analyzer",
	Long: `emvstat - A CLI tool for decoding, encoding and monitoring EMV
Consumer-Presented QR payloads.

Payloads can be given on the command line, read from files, or captured
live from a barcode scanner attached over serial or through a WebSocket
bridge.

Profiles:
  emvco       decimal lengths and tag ranges (default)
  legacy-hex  hexadecimal lengths and tag ranges

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config, ./emvstat.yaml,
~/.config/emvstat/config.yaml or /etc/emvstat/config.yaml, and secrets
from a .env file. For WebSocket authentication, the password is read from
the EMVSTAT_PASSWORD environment variable, or prompted interactively if not
set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Payload profile (emvco, legacy-hex)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadSettings reads the configuration and environment, applies flag
// overrides and sets up logging
func loadSettings(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}

	loaded, used, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loaded.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("profile") {
		loaded.Profile = profileName
	}
	if flags.Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		loaded.Logging.Format = logFormat
	}
	if flags.Changed("port") {
		loaded.Scanner.Port = portName
	}
	if flags.Changed("baud") {
		loaded.Scanner.Baud = baudRate
	}
	if flags.Changed("url") {
		loaded.Scanner.URL = wsURL
	}
	if flags.Changed("username") {
		loaded.Scanner.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.Scanner.NoSSLVerify = wsNoSSLVerify
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := logging.Setup(loaded.Logging.Level, loaded.Logging.Format, os.Stderr)
	if err != nil {
		return err
	}

	cfg, logger = loaded, l
	if used != "" {
		logger.Debug().Str("file", used).Msg("configuration loaded")
	}
	return nil
}

// currentProfile returns the configured profile, which Validate has
// already checked
func currentProfile() *emvqr.Profile {
	profile, err := cfg.ProfileValue()
	if err != nil {
		return emvqr.ProfileEMVCo
	}
	return profile
}

func newDecoder() *emvqr.Decoder {
	return emvqr.NewDecoder(currentProfile(), emvqr.WithTracer(logging.NewTracer(logger)))
}

func newEncoder() *emvqr.Encoder {
	return emvqr.NewEncoder(currentProfile(), cfg.EncoderOptions()...)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
