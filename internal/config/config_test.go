// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "emvco", cfg.Profile)
	assert.False(t, cfg.MQTT.Enabled())
	assert.False(t, cfg.NATS.Enabled())
}

func TestLoadFrom_NoFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, used, err := LoadFrom([]string{"", filepath.Join(dir, "missing.yaml")})

	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFrom_MergesOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "emvstat.yaml", `
profile: legacy-hex
logging:
  level: debug
encoder:
  defaults:
    merchant_name: CORNER SHOP
    currency: USD
  minor_units:
    usd: 100
scanner:
  port: /dev/ttyACM0
mqtt:
  broker: localhost
  qos: 1
`)

	cfg, used, err := LoadFrom([]string{filepath.Join(dir, "missing.yaml"), path})
	require.NoError(t, err)
	assert.Equal(t, path, used)

	assert.Equal(t, "legacy-hex", cfg.Profile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "CORNER SHOP", cfg.Encoder.Defaults.MerchantName)
	assert.Equal(t, int64(100), cfg.Encoder.MinorUnits["usd"])
	assert.Equal(t, "/dev/ttyACM0", cfg.Scanner.Port)
	assert.Equal(t, 9600, cfg.Scanner.Baud)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "emvstat/scans", cfg.MQTT.Topic)

	profile, err := cfg.ProfileValue()
	require.NoError(t, err)
	assert.Same(t, emvqr.ProfileLegacyHex, profile)
}

func TestLoadFrom_ParseError(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "bad.yaml", "profile: [emvco\n")
	_, _, err := LoadFrom([]string{path})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing configuration")
}

func TestLoadFrom_ValidationError(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "bad.yaml", "profile: octal\n")
	_, _, err := LoadFrom([]string{path})

	require.Error(t, err)
	assert.ErrorIs(t, err, emvqr.ErrUnknownProfile)
}

func TestLoad_ExplicitMissing(t *testing.T) {
	t.Parallel()

	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestSearchPaths(t *testing.T) {
	t.Parallel()

	paths := SearchPaths("custom.yaml")
	require.NotEmpty(t, paths)
	assert.Equal(t, "custom.yaml", paths[0])
	assert.Equal(t, "./emvstat.yaml", paths[1])
	assert.Equal(t, "/etc/emvstat/config.yaml", paths[len(paths)-1])

	assert.Equal(t, "./emvstat.yaml", SearchPaths("")[0])
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, "unknown log level"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
		{"zero baud", func(c *Config) { c.Scanner.Baud = 0 }, "baud rate"},
		{"zero timeout", func(c *Config) { c.Scanner.Timeout = 0 }, "timeout"},
		{"minor units", func(c *Config) { c.Encoder.MinorUnits = map[string]int64{"JOD": 0} }, "minor unit factor for JOD"},
		{"mqtt port", func(c *Config) { c.MQTT.Broker = "localhost"; c.MQTT.Port = 0 }, "MQTT port"},
		{"mqtt topic", func(c *Config) { c.MQTT.Broker = "localhost"; c.MQTT.Topic = "" }, "MQTT topic"},
		{"mqtt qos", func(c *Config) { c.MQTT.Broker = "localhost"; c.MQTT.QoS = 3 }, "QoS"},
		{"nats subject", func(c *Config) { c.NATS.URL = "nats://localhost:4222"; c.NATS.Subject = "" }, "NATS subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_DisabledSinksSkipChecks(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.MQTT.Topic = ""
	cfg.NATS.Subject = ""
	assert.NoError(t, cfg.Validate())
}

func TestEncoderOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Encoder.Defaults.MerchantName = "CORNER SHOP"
	cfg.Encoder.Defaults.MerchantCity = "IRBID"
	cfg.Encoder.MinorUnits = map[string]int64{"jod": 100}

	encoder := emvqr.NewEncoder(emvqr.ProfileEMVCo, cfg.EncoderOptions()...)
	assert.Equal(t, "CORNER SHOP", encoder.Defaults().MerchantName)
	assert.Equal(t, "JOD", encoder.Defaults().CurrencyAlpha)

	p, err := emvqr.Decode(encoder.Encode(emvqr.FieldMap{emvqr.FieldAmount: "12.5"}))
	require.NoError(t, err)
	assert.Equal(t, "CORNER SHOP", p.MerchantName)
	assert.Equal(t, "IRBID", p.MerchantCity)
	require.NotNil(t, p.Amount)
	assert.Equal(t, "1250", *p.Amount)
}

// Environment tests are not parallel: they mutate the process environment.

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvMQTTPassword, "s3cret")
	t.Setenv(EnvNATSURL, "nats://broker:4222")
	t.Setenv(EnvProfile, "hex")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "s3cret", cfg.MQTT.Password)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "hex", cfg.Profile)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_FilePasswordWins(t *testing.T) {
	t.Setenv(EnvMQTTPassword, "from-env")

	cfg := Default()
	cfg.MQTT.Password = "from-file"
	cfg.ApplyEnv()

	assert.Equal(t, "from-file", cfg.MQTT.Password)
}

func TestLoadEnv(t *testing.T) {
	const key = "EMVSTAT_TEST_DOTENV_VALUE"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))

	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", key+"=loaded\n")

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "loaded", os.Getenv(key))
}
