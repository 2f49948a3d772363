//go:build !linux

package i2c

import (
	"context"
	"errors"

	"github.com/mklimuk/lightsense"
)

var _ lightsense.I2CBus = &D2r2Bus{}

var errD2r2Unsupported = errors.New("d2r2/go-i2c is only available on linux")

// D2r2Bus is unavailable outside linux; every transaction fails.
type D2r2Bus struct{}

func NewD2r2Bus(bus int, verbose bool) *D2r2Bus {
	return &D2r2Bus{}
}

func (b *D2r2Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return errD2r2Unsupported
}

func (b *D2r2Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return errD2r2Unsupported
}

func (b *D2r2Bus) Release(ctx context.Context) error {
	return nil
}

func (b *D2r2Bus) Close() error {
	return nil
}
