// Package lightsense defines the bus and publication contracts shared by the
// TSL4531 driver, its transports and its publishers.
package lightsense

import (
	"context"
	"errors"
)

var ErrBusBusy = errors.New("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus addresses devices by their 7-bit address. Implementations shift the
// address into whatever format their wire protocol expects.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// SpeedSetter is implemented by transports that can change the bus clock.
type SpeedSetter interface {
	SetSpeed(ctx context.Context, hz int) error
}

// PublishCallback receives the outcome of a publication once the publisher
// has processed it. It may be invoked from another goroutine.
type PublishCallback func(topic string, err error)

// Publisher emits payloads under a topic. Publish must not block on delivery;
// completion is reported through done when it is non-nil.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, done PublishCallback)
}
