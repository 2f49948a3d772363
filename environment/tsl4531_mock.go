package environment

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/lightsense"
)

var _ lightsense.I2CBus = &MockTSL4531{}

// CountsBehaviorFunc produces the raw 16-bit ADC count for a conversion.
type CountsBehaviorFunc func(ctx context.Context) (uint16, error)

// FaultFunc may fail a bus transaction. write tells whether the transaction
// is a write; reg is the register selected when it happens.
type FaultFunc func(write bool, reg byte, buffer []byte) error

// MockTSL4531 emulates the TSL4531 register file behind an I2C bus so the
// driver can run without hardware. It tracks the power state and counts
// config and data accesses made while the chip is powered down.
//
// Example usage:
//
//	bus := NewMockTSL4531(WithMockCounts(func(ctx context.Context) (uint16, error) {
//		return 500, nil
//	}))
//	s := NewTSL4531(ctx, bus)
type MockTSL4531 struct {
	mx        sync.Mutex
	addr      byte
	regs      [16]byte
	pointer   byte
	powered   bool
	unpowered int
	writes    int
	reads     int
	counts    CountsBehaviorFunc
	fault     FaultFunc
}

type MockTSL4531Opt func(*MockTSL4531)

// WithMockPart sets the part reported in the device ID register.
func WithMockPart(p Part) MockTSL4531Opt {
	return func(m *MockTSL4531) {
		m.regs[tsl4531RegDeviceID] = byte(p) << 4
	}
}

// WithMockDeviceID sets the raw device ID register.
func WithMockDeviceID(id byte) MockTSL4531Opt {
	return func(m *MockTSL4531) {
		m.regs[tsl4531RegDeviceID] = id
	}
}

func WithMockCounts(counts CountsBehaviorFunc) MockTSL4531Opt {
	return func(m *MockTSL4531) {
		m.counts = counts
	}
}

func WithMockFault(fault FaultFunc) MockTSL4531Opt {
	return func(m *MockTSL4531) {
		m.fault = fault
	}
}

func NewMockTSL4531(opts ...MockTSL4531Opt) *MockTSL4531 {
	m := &MockTSL4531{addr: TSL4531Address}
	m.regs[tsl4531RegDeviceID] = byte(PartTSL45315) << 4
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockTSL4531) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if address != m.addr {
		return fmt.Errorf("no device at address %#x", address)
	}
	if len(buffer) == 0 {
		return nil
	}
	if buffer[0]&tsl4531CmdBit == 0 {
		return fmt.Errorf("command bit missing in %#02x", buffer[0])
	}
	reg := buffer[0] & 0x0F
	if m.fault != nil {
		if err := m.fault(true, reg, buffer); err != nil {
			return err
		}
	}
	m.writes++
	m.pointer = reg
	if len(buffer) < 2 {
		return nil
	}
	switch reg {
	case tsl4531RegControl:
		m.regs[reg] = buffer[1] & 0x03
		m.powered = m.regs[reg] == tsl4531PowerOn
	case tsl4531RegConfig:
		if !m.powered {
			m.unpowered++
		}
		m.regs[reg] = buffer[1]
	}
	return nil
}

func (m *MockTSL4531) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if address != m.addr {
		return fmt.Errorf("no device at address %#x", address)
	}
	if m.fault != nil {
		if err := m.fault(false, m.pointer, buffer); err != nil {
			return err
		}
	}
	m.reads++
	if m.pointer == tsl4531RegDataLow {
		if !m.powered {
			m.unpowered++
		} else if m.counts != nil {
			counts, err := m.counts(ctx)
			if err != nil {
				return err
			}
			m.regs[tsl4531RegDataLow] = byte(counts)
			m.regs[tsl4531RegDataHigh] = byte(counts >> 8)
		}
	}
	for i := range buffer {
		buffer[i] = m.regs[(int(m.pointer)+i)&0x0F]
	}
	return nil
}

func (m *MockTSL4531) Release(ctx context.Context) error {
	return nil
}

// Powered reports whether the emulated ADC is on.
func (m *MockTSL4531) Powered() bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.powered
}

// Config returns the config register content.
func (m *MockTSL4531) Config() byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.regs[tsl4531RegConfig]
}

// UnpoweredAccesses counts config writes and data reads done while off.
func (m *MockTSL4531) UnpoweredAccesses() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.unpowered
}

// Transactions returns the number of completed writes and reads.
func (m *MockTSL4531) Transactions() (writes, reads int) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.writes, m.reads
}
