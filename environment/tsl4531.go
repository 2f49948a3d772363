package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/lightsense"
)

// TSL4531Address is the only 7-bit bus address the TSL4531 family answers on.
const TSL4531Address = 0x29

// TopicLux is the default topic periodic readings are published under.
const TopicLux = "stat/value/lux"

// Register map. Every command byte carries the command bit.
const (
	tsl4531CmdBit      byte = 0x80
	tsl4531RegControl  byte = 0x00
	tsl4531RegConfig   byte = 0x01
	tsl4531RegDataLow  byte = 0x04
	tsl4531RegDataHigh byte = 0x05
	tsl4531RegDeviceID byte = 0x0A
)

// Control register values.
const (
	tsl4531PowerOn  byte = 0x03
	tsl4531PowerOff byte = 0x00
)

var ErrSpeedUnsupported = errors.New("tsl4531: transport does not support bus speed changes")

// Part identifies the chip variant, read from the upper nibble of the
// device ID register.
type Part byte

const (
	PartUnknown  Part = 0x00
	PartTSL45317 Part = 0x08
	PartTSL45313 Part = 0x09
	PartTSL45315 Part = 0x0A
	PartTSL45311 Part = 0x0B
)

func (p Part) String() string {
	switch p {
	case PartTSL45317:
		return "TSL45317"
	case PartTSL45313:
		return "TSL45313"
	case PartTSL45315:
		return "TSL45315"
	case PartTSL45311:
		return "TSL45311"
	default:
		return "unknown"
	}
}

func partFromID(id byte) Part {
	switch p := Part(id >> 4); p {
	case PartTSL45317, PartTSL45313, PartTSL45315, PartTSL45311:
		return p
	default:
		return PartUnknown
	}
}

type TSL4531Opts struct {
	Address   byte
	Debug     bool
	Logger    *slog.Logger
	Publisher lightsense.Publisher
	Topic     string
	Sleep     func(time.Duration)
}

type TSL4531Opt func(*TSL4531Opts)

// WithTSL4531Address overrides the bus address; only useful behind address
// translators.
func WithTSL4531Address(addr byte) TSL4531Opt {
	return func(o *TSL4531Opts) {
		o.Address = addr
	}
}

// WithDebug enables driver traces. Without it the driver does not log.
func WithDebug(debug bool) TSL4531Opt {
	return func(o *TSL4531Opts) {
		o.Debug = debug
	}
}

func WithLogger(logger *slog.Logger) TSL4531Opt {
	return func(o *TSL4531Opts) {
		o.Logger = logger
	}
}

func WithPublisher(p lightsense.Publisher) TSL4531Opt {
	return func(o *TSL4531Opts) {
		o.Publisher = p
	}
}

func WithTopic(topic string) TSL4531Opt {
	return func(o *TSL4531Opts) {
		o.Topic = topic
	}
}

// WithSleep replaces the blocking delay used for integration and cycle waits.
func WithSleep(sleep func(time.Duration)) TSL4531Opt {
	return func(o *TSL4531Opts) {
		o.Sleep = sleep
	}
}

// TSL4531 represents an ams TSL4531x ambient light sensor.
//
// The chip's ADC must only be powered while it is being accessed, so every
// register transaction is wrapped in an enable/disable pair. The driver does
// not serialize access to the transport: while the sampler runs, callers must
// not issue other operations on the same handle.
//
// Typical usage:
//
//	s := NewTSL4531(ctx, bus, WithPublisher(p))
//	if !s.Ready() { ... }
//	err := s.ReadLux(ctx)
//	lux := s.GetLux()
type TSL4531 struct {
	transport lightsense.I2CBus
	addr      byte
	log       *slog.Logger
	publisher lightsense.Publisher
	topic     string
	sleep     func(time.Duration)

	mx              sync.Mutex
	ready           bool
	part            Part
	integrationTime IntegrationTime
	skipPowerSave   bool
	lux             uint16

	loopMx   sync.Mutex
	running  bool
	cycle    time.Duration
	loopCtx  context.Context
	loopDone chan struct{}
}

// NewTSL4531 creates the driver and runs Init once. Construction never fails;
// Ready reports whether initialization succeeded.
func NewTSL4531(ctx context.Context, transport lightsense.I2CBus, opts ...TSL4531Opt) *TSL4531 {
	config := TSL4531Opts{
		Address: TSL4531Address,
		Topic:   TopicLux,
		Sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !config.Debug {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &TSL4531{
		transport:       transport,
		addr:            config.Address,
		log:             logger.With("module", "tsl4531"),
		publisher:       config.Publisher,
		topic:           config.Topic,
		sleep:           config.Sleep,
		integrationTime: Integration400ms,
	}
	s.log.Info("initializing driver", "addr", fmt.Sprintf("%#x", s.addr))
	_ = s.Init(ctx)
	return s
}

// Init powers the chip up, checks that the control register reads back as
// enabled, identifies the part and powers it down again. Only bus failures
// make it fail; an unexpected control value or part ID is logged.
func (s *TSL4531) Init(ctx context.Context) error {
	err := s.powered(ctx, func() error {
		ctrl, err := s.readRegister(ctx, tsl4531RegControl, 1)
		if err != nil {
			s.log.Error("control register read failed", "error", err)
			return fmt.Errorf("tsl4531: control register read failed: %w", err)
		}
		if ctrl[0] != tsl4531PowerOn {
			s.log.Error("chip not enabled after power on", "control", fmt.Sprintf("%#02x", ctrl[0]))
		}
		id, err := s.readRegister(ctx, tsl4531RegDeviceID, 1)
		if err != nil {
			s.log.Error("device id read failed", "error", err)
			return fmt.Errorf("tsl4531: device id read failed: %w", err)
		}
		part := partFromID(id[0])
		if part == PartUnknown {
			s.log.Error("unknown part", "id", id[0]>>4)
		}
		s.mx.Lock()
		s.part = part
		s.mx.Unlock()
		return nil
	})
	s.mx.Lock()
	s.ready = err == nil
	s.mx.Unlock()
	return err
}

// Ready reports whether the last initialization succeeded.
func (s *TSL4531) Ready() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.ready
}

// PartID returns the identified chip variant or PartUnknown.
func (s *TSL4531) PartID() Part {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.part
}

// Frequency sets the bus clock when the transport supports it.
func (s *TSL4531) Frequency(ctx context.Context, hz int) error {
	setter, ok := s.transport.(lightsense.SpeedSetter)
	if !ok {
		return ErrSpeedUnsupported
	}
	if err := setter.SetSpeed(ctx, hz); err != nil {
		return fmt.Errorf("tsl4531: could not set bus frequency to %d Hz: %w", hz, err)
	}
	return nil
}
