package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/lightsense/environment"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lightsense.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	it, err := cfg.IntegrationTime()
	require.NoError(t, err)
	assert.Equal(t, environment.Integration400ms, it)
	assert.Equal(t, environment.TopicLux, cfg.Sensor.Topic)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
bus:
  adapter: mcp2221
  speed_hz: 100000
sensor:
  integration_ms: 100
  power_save_skip: true
  cycle: 5s
mqtt:
  broker: tcp://localhost:1883
  qos: 1
history:
  path: /var/lib/lightsense/history.db
  retention: 48h
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, AdapterMCP2221, cfg.Bus.Adapter)
	assert.Equal(t, "/dev/i2c-1", cfg.Bus.Device, "unset keys keep defaults")
	assert.Equal(t, 100_000, cfg.Bus.SpeedHz)
	assert.True(t, cfg.Sensor.PowerSaveSkip)
	assert.Equal(t, 5*time.Second, cfg.Sensor.Cycle)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, 48*time.Hour, cfg.History.Retention)
	it, err := cfg.IntegrationTime()
	require.NoError(t, err)
	assert.Equal(t, environment.Integration100ms, it)
}

func TestLoad_ErrorCases(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{name: "unknown key", content: "sensor:\n  gain: 2\n"},
		{name: "malformed", content: "bus: [\n"},
		{name: "bad integration", content: "sensor:\n  integration_ms: 300\n", invalid: true},
		{name: "bad adapter", content: "bus:\n  adapter: spi\n", invalid: true},
		{name: "bad qos", content: "mqtt:\n  qos: 3\n", invalid: true},
		{name: "empty topic", content: "sensor:\n  topic: \"\"\n", invalid: true},
		{name: "negative cycle", content: "sensor:\n  cycle: -1s\n", invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))

			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NotErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
