package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/lightsense"
	"github.com/mklimuk/lightsense/adapter"
	"github.com/mklimuk/lightsense/cmd/lightsense/console"
	"github.com/mklimuk/lightsense/environment"
	"github.com/mklimuk/lightsense/i2c"
	"github.com/mklimuk/lightsense/pkg/config"
	"github.com/mklimuk/lightsense/snsctx"
)

var busFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter: periph, d2r2, mcp2221 or nanopi",
	},
	&cli.StringFlag{
		Name:  "device",
		Usage: "periph.io bus name",
	},
	&cli.IntFlag{
		Name:  "bus",
		Usage: "bus number for d2r2 and nanopi adapters",
	},
}

var sensorFlags = []cli.Flag{
	&cli.IntFlag{
		Name:    "integration",
		Aliases: []string{"i"},
		Usage:   "integration time in ms: 100, 200 or 400",
	},
	&cli.BoolFlag{
		Name:  "psskip",
		Usage: "skip the power save state between conversions",
	},
	&cli.BoolFlag{
		Name:  "debug",
		Usage: "enable driver traces",
	},
}

// commandContext carries the verbose flag and the default logger.
func commandContext(c *cli.Context) context.Context {
	ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
	return snsctx.WithLogger(ctx, slog.Default())
}

// loadConfig reads the --config file, or the defaults, and applies the
// command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("adapter") {
		cfg.Bus.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		cfg.Bus.Device = c.String("device")
	}
	if c.IsSet("bus") {
		cfg.Bus.Number = c.Int("bus")
	}
	if c.IsSet("integration") {
		cfg.Sensor.IntegrationMs = c.Int("integration")
	}
	if c.IsSet("psskip") {
		cfg.Sensor.PowerSaveSkip = c.Bool("psskip")
	}
	if c.IsSet("debug") {
		cfg.Sensor.Debug = c.Bool("debug")
	}
	if c.IsSet("cycle") {
		cfg.Sensor.Cycle = c.Duration("cycle")
	}
	if c.IsSet("topic") {
		cfg.Sensor.Topic = c.String("topic")
	}
	if c.IsSet("mqtt") {
		cfg.MQTT.Broker = c.String("mqtt")
	}
	if c.IsSet("history") {
		cfg.History.Path = c.String("history")
	}
	return cfg, cfg.Validate()
}

// openBus opens the configured transport. The returned close function
// releases it.
func openBus(ctx context.Context, cfg config.Bus) (lightsense.I2CBus, func(), error) {
	switch cfg.Adapter {
	case config.AdapterPeriph:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, nil, err
		}
		return bus, func() { _ = bus.Close() }, nil
	case config.AdapterD2r2:
		bus := i2c.NewD2r2Bus(cfg.Number, snsctx.IsVerbose(ctx))
		return bus, func() { _ = bus.Close() }, nil
	case config.AdapterMCP2221:
		a := adapter.NewMCP2221()
		return a, func() { _ = a.Release(ctx) }, nil
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, cfg.Number)
		return bus, func() {
			_ = bus.Close()
			_ = npi.I2cBusAdaptor.Finalize()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown bus adapter %q", cfg.Adapter)
}

// newSensor builds the driver and applies the sensor settings. It fails
// when the chip did not initialize.
func newSensor(ctx context.Context, bus lightsense.I2CBus, cfg config.Config, publisher lightsense.Publisher) (*environment.TSL4531, error) {
	opts := []environment.TSL4531Opt{
		environment.WithDebug(cfg.Sensor.Debug),
		environment.WithLogger(snsctx.Logger(ctx)),
		environment.WithTopic(cfg.Sensor.Topic),
	}
	if publisher != nil {
		opts = append(opts, environment.WithPublisher(publisher))
	}
	s := environment.NewTSL4531(ctx, bus, opts...)
	if !s.Ready() {
		return nil, fmt.Errorf("sensor did not initialize")
	}
	console.Infof("found %s", console.White(s.PartID()))
	if cfg.Bus.SpeedHz > 0 {
		if err := s.Frequency(ctx, cfg.Bus.SpeedHz); err != nil {
			return nil, err
		}
	}
	it, err := cfg.IntegrationTime()
	if err != nil {
		return nil, err
	}
	if err := s.SetIntegrationTime(ctx, it); err != nil {
		return nil, err
	}
	if err := s.SetPowerSaveSkip(ctx, cfg.Sensor.PowerSaveSkip); err != nil {
		return nil, err
	}
	return s, nil
}
