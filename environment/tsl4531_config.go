package environment

import (
	"context"
	"fmt"
	"time"
)

// IntegrationTime is the ADC accumulation window, encoded as the config
// register's two low bits.
type IntegrationTime byte

const (
	Integration400ms IntegrationTime = 0x00
	Integration200ms IntegrationTime = 0x01
	Integration100ms IntegrationTime = 0x02
)

const (
	tsl4531PowerSaveSkipBit byte = 0x08
	tsl4531IntegrationMask  byte = 0x03
)

// Duration returns the wait needed for a conversion to complete. Values
// outside the three known settings fall back to 400ms.
func (t IntegrationTime) Duration() time.Duration {
	switch t {
	case Integration100ms:
		return 100 * time.Millisecond
	case Integration200ms:
		return 200 * time.Millisecond
	default:
		return 400 * time.Millisecond
	}
}

// Multiplier scales raw counts to lux for the integration time.
func (t IntegrationTime) Multiplier() uint16 {
	switch t {
	case Integration100ms:
		return 4
	case Integration200ms:
		return 2
	default:
		return 1
	}
}

func (t IntegrationTime) String() string {
	return t.Duration().String()
}

// IntegrationTimeFromDuration maps 100ms, 200ms and 400ms to their settings.
func IntegrationTimeFromDuration(d time.Duration) (IntegrationTime, error) {
	switch d {
	case 100 * time.Millisecond:
		return Integration100ms, nil
	case 200 * time.Millisecond:
		return Integration200ms, nil
	case 400 * time.Millisecond:
		return Integration400ms, nil
	}
	return 0, fmt.Errorf("tsl4531: unsupported integration time %s", d)
}

func configByte(skipPowerSave bool, t IntegrationTime) byte {
	var cfg byte
	if skipPowerSave {
		cfg = tsl4531PowerSaveSkipBit
	}
	return cfg | byte(t)&tsl4531IntegrationMask
}

// SetIntegrationTime writes the new integration time to the chip. The stored
// setting only changes when enable, write and disable all succeed. Values
// above the two-bit range are masked on the wire.
func (s *TSL4531) SetIntegrationTime(ctx context.Context, t IntegrationTime) error {
	s.mx.Lock()
	cfg := configByte(s.skipPowerSave, t)
	s.mx.Unlock()
	err := s.writeConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("tsl4531: could not set integration time: %w", err)
	}
	s.mx.Lock()
	s.integrationTime = t
	s.mx.Unlock()
	return nil
}

// SetPowerSaveSkip toggles the chip's automatic power saving between
// conversions. The stored flag only changes on success.
func (s *TSL4531) SetPowerSaveSkip(ctx context.Context, skip bool) error {
	s.mx.Lock()
	cfg := configByte(skip, s.integrationTime)
	s.mx.Unlock()
	err := s.writeConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("tsl4531: could not set power save skip: %w", err)
	}
	s.mx.Lock()
	s.skipPowerSave = skip
	s.mx.Unlock()
	return nil
}

// IntegrationTime returns the integration time last applied to the chip.
func (s *TSL4531) IntegrationTime() IntegrationTime {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.integrationTime
}

// PowerSaveSkip reports whether the power save state is skipped.
func (s *TSL4531) PowerSaveSkip() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.skipPowerSave
}

func (s *TSL4531) writeConfig(ctx context.Context, cfg byte) error {
	return s.powered(ctx, func() error {
		err := s.writeRegister(ctx, tsl4531RegConfig, cfg)
		if err != nil {
			s.log.Error("config write failed", "error", err)
		}
		return err
	})
}
