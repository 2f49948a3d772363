package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mklimuk/lightsense/cmd/lightsense/console"
	"github.com/mklimuk/lightsense/history"
	"github.com/mklimuk/lightsense/pkg/config"
	"github.com/mklimuk/lightsense/publish"
)

var lightCmd = cli.Command{
	Name:  "light",
	Usage: "TSL4531 ambient light sensor",
	Subcommands: []*cli.Command{
		&lightReadCmd,
		&lightWatchCmd,
		&lightHistoryCmd,
		&lightShellCmd,
	},
}

var lightReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "run one sampling cycle and print the reading",
	Flags:   append(append([]cli.Flag{}, busFlags...), sensorFlags...),
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		bus, closeBus, err := openBus(ctx, cfg.Bus)
		if err != nil {
			return console.Fail("bus initialization error", err)
		}
		defer closeBus()
		s, err := newSensor(ctx, bus, cfg, nil)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		if err := s.ReadLux(ctx); err != nil {
			return console.Fail("error getting light sensor read", err)
		}
		console.PInfof(console.PictoSun, "%s lux", console.White(s.GetLux()))
		return nil
	},
}

var lightWatchCmd = cli.Command{
	Name:  "watch",
	Usage: "sample periodically until interrupted",
	Flags: append(append([]cli.Flag{
		&cli.DurationFlag{
			Name:  "cycle",
			Usage: "idle time between readings",
		},
		&cli.StringFlag{
			Name:  "topic",
			Usage: "publication topic",
		},
		&cli.StringFlag{
			Name:  "mqtt",
			Usage: "MQTT broker URL, e.g. tcp://localhost:1883",
		},
		&cli.StringFlag{
			Name:  "history",
			Usage: "SQLite database recording the readings",
		},
	}, busFlags...), sensorFlags...),
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}

		local := publish.NewLocal(16)
		sinks := publish.Multi{local}
		if cfg.MQTT.Broker != "" {
			m, err := publish.DialMQTT(mqttOpts(cfg.MQTT))
			if err != nil {
				return console.Fail("mqtt error", err)
			}
			defer m.Close(250)
			sinks = append(sinks, m)
			console.Infof("publishing to %s", console.White(cfg.MQTT.Broker))
		}

		g, gctx := errgroup.WithContext(ctx)
		if cfg.History.Path != "" {
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return console.Fail("history error", err)
			}
			defer func() { _ = store.Close() }()
			rec := history.NewRecorder(store, local, cfg.Sensor.Topic, history.WithRetention(cfg.History.Retention))
			g.Go(func() error {
				_ = rec.Run(gctx)
				return nil
			})
			console.Infof("recording to %s", console.White(cfg.History.Path))
		}
		printer := local.Subscribe(cfg.Sensor.Topic)
		g.Go(func() error {
			defer printer.Unsubscribe()
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg := <-printer.Channel():
					if len(msg.Payload) == 2 {
						console.PInfof(console.PictoSun, "%s lux", console.White(binary.NativeEndian.Uint16(msg.Payload)))
					}
				}
			}
		})

		bus, closeBus, err := openBus(ctx, cfg.Bus)
		if err != nil {
			stop()
			_ = g.Wait()
			return console.Fail("bus initialization error", err)
		}
		defer closeBus()
		s, err := newSensor(ctx, bus, cfg, sinks)
		if err != nil {
			stop()
			_ = g.Wait()
			return console.Fail("sensor initialization error", err)
		}

		s.Start(ctx, cfg.Sensor.Cycle)
		console.Infof("sampling every %s, press Ctrl+C to stop", console.White(cfg.Sensor.Cycle))
		<-ctx.Done()
		s.Stop()
		s.Wait()
		_ = g.Wait()
		console.PInfof(console.PictoFinish, "stopped")
		return nil
	},
}

func mqttOpts(cfg config.MQTT) publish.MQTTOpts {
	return publish.MQTTOpts{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		QoS:      cfg.QoS,
		Retained: cfg.Retained,
		Prefix:   cfg.Prefix,
		Timeout:  cfg.Timeout,
	}
}

var lightHistoryCmd = cli.Command{
	Name:  "history",
	Usage: "print recorded readings",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "history",
			Usage: "SQLite database with recorded readings",
		},
		&cli.StringFlag{
			Name:  "topic",
			Usage: "publication topic",
		},
		&cli.DurationFlag{
			Name:  "since",
			Value: 24 * time.Hour,
			Usage: "how far back to look",
		},
		&cli.BoolFlag{
			Name:  "latest",
			Usage: "print only the most recent reading",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		if cfg.History.Path == "" {
			return console.Exit(1, "no history database configured")
		}
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return console.Fail("history error", err)
		}
		defer func() { _ = store.Close() }()

		var readings []*history.Reading
		if c.Bool("latest") {
			r, err := store.Latest(ctx, cfg.Sensor.Topic)
			if err != nil {
				return console.Fail("history error", err)
			}
			readings = append(readings, r)
		} else {
			now := time.Now()
			readings, err = store.Range(ctx, cfg.Sensor.Topic, now.Add(-c.Duration("since")), now.Add(time.Second))
			if err != nil {
				return console.Fail("history error", err)
			}
		}
		w := tabwriter.NewWriter(os.Stdout, 12, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "TIME\tLUX\n")
		for _, r := range readings {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", r.Time.Format(time.DateTime), r.Lux)
		}
		return w.Flush()
	},
}

var lightShellCmd = cli.Command{
	Name:  "shell",
	Usage: "control the sensor interactively",
	Flags: append(append([]cli.Flag{}, busFlags...), sensorFlags...),
	Action: func(c *cli.Context) error {
		ctx, cancel := context.WithCancel(commandContext(c))
		defer cancel()
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		bus, closeBus, err := openBus(ctx, cfg.Bus)
		if err != nil {
			return console.Fail("bus initialization error", err)
		}
		defer closeBus()
		s, err := newSensor(ctx, bus, cfg, nil)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          console.Yellow("tsl4531> "),
			AutoComplete:    shellCompleter,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return console.Fail("terminal error", err)
		}
		defer func() { _ = rl.Close() }()
		sh := &shell{sensor: s, out: rl.Stdout(), ctx: ctx}
		return sh.run(rl)
	},
}
