// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the emvstat configuration file and environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

// Environment variables read after the .env file is loaded
const (
	EnvPassword     = "EMVSTAT_PASSWORD"
	EnvMQTTPassword = "EMVSTAT_MQTT_PASSWORD"
	EnvNATSURL      = "EMVSTAT_NATS_URL"
	EnvProfile      = "EMVSTAT_PROFILE"
)

// Config represents the complete application configuration
type Config struct {
	Profile string        `yaml:"profile"`
	Logging LoggingConfig `yaml:"logging"`
	Encoder EncoderConfig `yaml:"encoder"`
	Scanner ScannerConfig `yaml:"scanner"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	NATS    NATSConfig    `yaml:"nats"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// EncoderConfig overrides the encoder fallbacks
type EncoderConfig struct {
	Defaults   DefaultsConfig   `yaml:"defaults"`
	MinorUnits map[string]int64 `yaml:"minor_units"`
}

// DefaultsConfig mirrors emvqr.Defaults; empty values keep the built-in ones
type DefaultsConfig struct {
	MerchantCategoryCode string `yaml:"merchant_category_code"`
	CurrencyAlpha        string `yaml:"currency"`
	CountryCode          string `yaml:"country_code"`
	MerchantName         string `yaml:"merchant_name"`
	MerchantCity         string `yaml:"merchant_city"`
}

// ScannerConfig describes where scanned payloads come from
type ScannerConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
	Timeout     int    `yaml:"timeout"` // probe timeout in seconds
}

// MQTTConfig contains MQTT broker settings. The sink is disabled when
// Broker is empty.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	ClientID   string `yaml:"client_id"`
	Topic      string `yaml:"topic"`
	QoS        byte   `yaml:"qos"`
	Retain     bool   `yaml:"retain"`
	RetryDelay int    `yaml:"retry_delay"` // milliseconds between connection attempts
}

// Enabled reports whether scans should be published to MQTT
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// NATSConfig contains NATS settings. The sink is disabled when URL is empty.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Enabled reports whether scans should be published to NATS
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// Default returns the configuration used when no file is found
func Default() *Config {
	return &Config{
		Profile: emvqr.ProfileEMVCo.Name,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scanner: ScannerConfig{
			Baud:    9600,
			Timeout: 10,
		},
		MQTT: MQTTConfig{
			Port:       1883,
			ClientID:   "emvstat",
			Topic:      "emvstat/scans",
			RetryDelay: 5000,
		},
		NATS: NATSConfig{
			Subject: "emvstat.scans",
		},
	}
}

// SearchPaths lists the files Load tries, in order. An explicit path is
// tried first.
func SearchPaths(explicit string) []string {
	paths := []string{}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths, "./emvstat.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "emvstat", "config.yaml"))
	}
	return append(paths, "/etc/emvstat/config.yaml")
}

// Load reads the configuration from explicit, or from the first file found
// on the search path. A missing explicit file is an error; when no file is
// found at all the defaults are returned. The second result names the file
// used ("" for defaults).
func Load(explicit string) (*Config, string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, "", fmt.Errorf("cannot read configuration file %s: %w", explicit, err)
		}
	}
	return LoadFrom(SearchPaths(explicit))
}

// LoadFrom reads the first existing file of paths over the defaults
func LoadFrom(paths []string) (*Config, string, error) {
	cfg := Default()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("cannot read configuration file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("error parsing configuration from %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("invalid configuration in %s: %w", path, err)
		}
		return cfg, path, nil
	}

	return cfg, "", nil
}

// LoadEnv loads .env style files into the process environment. Missing
// files are skipped and existing variables are not overridden. With no
// arguments ".env" is loaded.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("cannot load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv copies secrets and overrides from the environment
func (c *Config) ApplyEnv() {
	if pw, ok := os.LookupEnv(EnvMQTTPassword); ok && c.MQTT.Password == "" {
		c.MQTT.Password = pw
	}
	if url, ok := os.LookupEnv(EnvNATSURL); ok && url != "" {
		c.NATS.URL = url
	}
	if profile, ok := os.LookupEnv(EnvProfile); ok && profile != "" {
		c.Profile = profile
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := emvqr.ProfileByName(c.Profile); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (use console or json)", c.Logging.Format)
	}

	if c.Scanner.Baud <= 0 {
		return fmt.Errorf("scanner baud rate must be positive")
	}
	if c.Scanner.Timeout <= 0 {
		return fmt.Errorf("scanner timeout must be positive")
	}

	for alpha, factor := range c.Encoder.MinorUnits {
		if factor <= 0 {
			return fmt.Errorf("minor unit factor for %s must be positive", alpha)
		}
	}

	if c.MQTT.Enabled() {
		if c.MQTT.Port <= 0 {
			return fmt.Errorf("MQTT port must be positive")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("MQTT topic is not specified")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("MQTT QoS must be 0, 1 or 2")
		}
	}
	if c.NATS.Enabled() && c.NATS.Subject == "" {
		return fmt.Errorf("NATS subject is not specified")
	}

	return nil
}

// ProfileValue resolves the configured profile
func (c *Config) ProfileValue() (*emvqr.Profile, error) {
	return emvqr.ProfileByName(c.Profile)
}

// EncoderOptions converts the encoder section into encoder options
func (c *Config) EncoderOptions() []emvqr.EncoderOption {
	d := c.Encoder.Defaults
	opts := []emvqr.EncoderOption{
		emvqr.WithDefaults(emvqr.Defaults{
			MerchantCategoryCode: d.MerchantCategoryCode,
			CurrencyAlpha:        d.CurrencyAlpha,
			CountryCode:          d.CountryCode,
			MerchantName:         d.MerchantName,
			MerchantCity:         d.MerchantCity,
		}),
	}
	if len(c.Encoder.MinorUnits) > 0 {
		opts = append(opts, emvqr.WithMinorUnits(c.Encoder.MinorUnits))
	}
	return opts
}
