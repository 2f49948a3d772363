package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/mklimuk/lightsense/cmd/lightsense/console"
	"github.com/mklimuk/lightsense/environment"
)

var errQuit = errors.New("quit")

// shell drives one sensor handle interactively.
type shell struct {
	sensor *environment.TSL4531
	out    io.Writer
	// ctx scopes sampling started from the shell.
	ctx context.Context
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("read"),
	readline.PcItem("start"),
	readline.PcItem("stop"),
	readline.PcItem("lux"),
	readline.PcItem("part"),
	readline.PcItem("status"),
	readline.PcItem("itime", readline.PcItem("100"), readline.PcItem("200"), readline.PcItem("400")),
	readline.PcItem("psskip", readline.PcItem("on"), readline.PcItem("off")),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

const shellHelp = `read              run one sampling cycle
start [cycle]     start periodic sampling, e.g. start 5s
stop              stop periodic sampling after the current cycle
lux               print the last reading
part              print the chip variant
status            print sensor settings
itime <ms>        set integration time: 100, 200 or 400
psskip <on|off>   skip the power save state
exit              leave the shell
`

func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "read":
		if sh.sensor.Running() {
			return fmt.Errorf("sampling is running; stop it first")
		}
		if err := sh.sensor.ReadLux(sh.ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(sh.out, "%d lux\n", sh.sensor.GetLux())
	case "start":
		cycle := time.Second
		if len(args) > 0 {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("invalid cycle: %w", err)
			}
			cycle = d
		}
		sh.sensor.Start(sh.ctx, cycle)
		_, _ = fmt.Fprintf(sh.out, "sampling every %s\n", cycle)
	case "stop":
		sh.sensor.Stop()
		sh.sensor.Wait()
		_, _ = fmt.Fprintln(sh.out, "stopped")
	case "lux":
		_, _ = fmt.Fprintf(sh.out, "%d lux\n", sh.sensor.GetLux())
	case "part":
		_, _ = fmt.Fprintln(sh.out, sh.sensor.PartID())
	case "status":
		_, _ = fmt.Fprintf(sh.out, "part=%s integration=%s psskip=%t running=%t lux=%d\n",
			sh.sensor.PartID(), sh.sensor.IntegrationTime(), sh.sensor.PowerSaveSkip(),
			sh.sensor.Running(), sh.sensor.GetLux())
	case "itime":
		if err := sh.idle(); err != nil {
			return err
		}
		if len(args) != 1 {
			return fmt.Errorf("usage: itime <100|200|400>")
		}
		ms, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid integration time: %w", err)
		}
		it, err := environment.IntegrationTimeFromDuration(time.Duration(ms) * time.Millisecond)
		if err != nil {
			return err
		}
		return sh.sensor.SetIntegrationTime(sh.ctx, it)
	case "psskip":
		if err := sh.idle(); err != nil {
			return err
		}
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("usage: psskip <on|off>")
		}
		return sh.sensor.SetPowerSaveSkip(sh.ctx, args[0] == "on")
	case "help":
		_, _ = io.WriteString(sh.out, shellHelp)
	case "exit", "quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// idle rejects configuration changes while the sampler owns the bus.
func (sh *shell) idle() error {
	if sh.sensor.Running() {
		return fmt.Errorf("sampling is running; stop it first")
	}
	return nil
}

// run reads commands until exit, EOF or interrupt and stops sampling on
// the way out.
func (sh *shell) run(rl *readline.Instance) error {
	defer func() {
		sh.sensor.Stop()
		sh.sensor.Wait()
	}()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		err = sh.exec(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			_, _ = fmt.Fprint(rl.Stderr(), console.Format(err))
		}
	}
}
