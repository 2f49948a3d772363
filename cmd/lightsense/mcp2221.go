package main

import (
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/lightsense/adapter"
	"github.com/mklimuk/lightsense/cmd/lightsense/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 USB to I2C bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221SpeedCmd,
	},
}

var deviceFlag = &cli.IntFlag{
	Name:  "id",
	Value: -1,
	Usage: "adapter index when several are connected",
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Flags: []cli.Flag{deviceFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("id")))
		status, err := a.Status(commandContext(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Flags: []cli.Flag{
		deviceFlag,
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		if !c.Bool("yes") {
			ok, err := console.Confirm("cancel the pending transfer?")
			if err != nil {
				return console.Fail("prompt error", err)
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("id")))
		status, err := a.ReleaseBus(commandContext(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

var mcp2221SpeedCmd = cli.Command{
	Name:      "speed",
	Usage:     "set the I2C clock",
	ArgsUsage: "<hz>",
	Flags:     []cli.Flag{deviceFlag},
	Action: func(c *cli.Context) error {
		hz := c.Args().First()
		if hz == "" {
			return console.Exit(1, "missing bus speed")
		}
		speed, err := strconv.Atoi(hz)
		if err != nil {
			return console.Exit(1, "invalid bus speed %s: %s", hz, console.Red(err))
		}
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("id")))
		if err := a.SetSpeed(commandContext(c), speed); err != nil {
			return console.Fail("adapter communication error", err)
		}
		console.PInfof(console.PictoPin, "bus speed set to %s Hz", console.White(speed))
		return nil
	},
}

func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(v); err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}
