package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/lightsense/environment"
)

// Version is injected at build time.
var Version = "dev"

const (
	AdapterPeriph  = "periph"
	AdapterD2r2    = "d2r2"
	AdapterMCP2221 = "mcp2221"
	AdapterNanoPi  = "nanopi"
)

var ErrInvalid = errors.New("invalid configuration")

type Bus struct {
	Adapter string `yaml:"adapter"`
	// Device is the periph.io bus name, e.g. "/dev/i2c-1".
	Device  string `yaml:"device"`
	Number  int    `yaml:"number"`
	SpeedHz int    `yaml:"speed_hz"`
}

type Sensor struct {
	IntegrationMs int           `yaml:"integration_ms"`
	PowerSaveSkip bool          `yaml:"power_save_skip"`
	Cycle         time.Duration `yaml:"cycle"`
	Debug         bool          `yaml:"debug"`
	Topic         string        `yaml:"topic"`
}

type MQTT struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	QoS      byte          `yaml:"qos"`
	Retained bool          `yaml:"retained"`
	Prefix   string        `yaml:"prefix"`
	Timeout  time.Duration `yaml:"timeout"`
}

type History struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

type Config struct {
	Bus     Bus     `yaml:"bus"`
	Sensor  Sensor  `yaml:"sensor"`
	MQTT    MQTT    `yaml:"mqtt"`
	History History `yaml:"history"`
}

func Default() Config {
	return Config{
		Bus: Bus{
			Adapter: AdapterPeriph,
			Device:  "/dev/i2c-1",
			Number:  1,
		},
		Sensor: Sensor{
			IntegrationMs: 400,
			Cycle:         time.Second,
			Topic:         environment.TopicLux,
		},
		MQTT: MQTT{
			ClientID: "lightsense",
			Timeout:  10 * time.Second,
		},
		History: History{
			Retention: 7 * 24 * time.Hour,
		},
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Bus.Adapter {
	case AdapterPeriph, AdapterD2r2, AdapterMCP2221, AdapterNanoPi:
	default:
		return fmt.Errorf("%w: unknown bus adapter %q", ErrInvalid, c.Bus.Adapter)
	}
	if c.Bus.SpeedHz < 0 {
		return fmt.Errorf("%w: negative bus speed", ErrInvalid)
	}
	if _, err := c.IntegrationTime(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	if c.Sensor.Cycle < 0 {
		return fmt.Errorf("%w: negative cycle", ErrInvalid)
	}
	if c.Sensor.Topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalid)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt qos must be 0, 1 or 2", ErrInvalid)
	}
	if c.History.Retention < 0 {
		return fmt.Errorf("%w: negative history retention", ErrInvalid)
	}
	return nil
}

func (c Config) IntegrationTime() (environment.IntegrationTime, error) {
	return environment.IntegrationTimeFromDuration(time.Duration(c.Sensor.IntegrationMs) * time.Millisecond)
}
