//go:build linux

package i2c

import (
	"context"
	"fmt"
	"sync"

	d2i2c "github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"

	"github.com/mklimuk/lightsense"
)

var _ lightsense.I2CBus = &D2r2Bus{}

// D2r2Bus is a transport over d2r2/go-i2c. The library binds a file handle
// to one slave address, so a connection is opened lazily per address.
type D2r2Bus struct {
	mx    sync.Mutex
	bus   int
	conns map[byte]*d2i2c.I2C
}

// NewD2r2Bus prepares a transport over /dev/i2c-<bus>. The library's own
// tracing is only kept when verbose is set.
func NewD2r2Bus(bus int, verbose bool) *D2r2Bus {
	level := logger.InfoLevel
	if verbose {
		level = logger.DebugLevel
	}
	_ = logger.ChangePackageLogLevel("i2c", level)
	return &D2r2Bus{bus: bus, conns: make(map[byte]*d2i2c.I2C)}
}

func (b *D2r2Bus) conn(address byte) (*d2i2c.I2C, error) {
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := d2i2c.NewI2C(address, b.bus)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c-%d at %x: %w", b.bus, address, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *D2r2Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := c.WriteBytes(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *D2r2Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := c.ReadBytes(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *D2r2Bus) Release(ctx context.Context) error {
	return nil
}

// Close closes every connection opened so far.
func (b *D2r2Bus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var first error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.conns, addr)
	}
	return first
}
