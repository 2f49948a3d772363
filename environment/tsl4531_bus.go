package environment

import (
	"context"
	"fmt"
)

// writeRegister selects reg and writes the optional payload in one
// transaction.
func (s *TSL4531) writeRegister(ctx context.Context, reg byte, payload ...byte) error {
	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, tsl4531CmdBit|reg)
	buf = append(buf, payload...)
	err := s.transport.WriteToAddr(ctx, s.addr, buf)
	if err != nil {
		return fmt.Errorf("could not write register %#02x: %w", reg, err)
	}
	return nil
}

// readRegister selects reg and reads n consecutive bytes starting there.
func (s *TSL4531) readRegister(ctx context.Context, reg byte, n int) ([]byte, error) {
	err := s.writeRegister(ctx, reg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	err = s.transport.ReadFromAddr(ctx, s.addr, buf)
	if err != nil {
		return nil, fmt.Errorf("could not read register %#02x: %w", reg, err)
	}
	return buf, nil
}

func (s *TSL4531) enable(ctx context.Context) error {
	err := s.writeRegister(ctx, tsl4531RegControl, tsl4531PowerOn)
	if err != nil {
		s.log.Error("enable failed", "error", err)
		return fmt.Errorf("tsl4531: enable failed: %w", err)
	}
	return nil
}

func (s *TSL4531) disable(ctx context.Context) error {
	err := s.writeRegister(ctx, tsl4531RegControl, tsl4531PowerOff)
	if err != nil {
		s.log.Error("disable failed", "error", err)
		return fmt.Errorf("tsl4531: disable failed: %w", err)
	}
	return nil
}

// powered runs access between enable and disable. A failed enable skips
// access; a failed access still attempts to power the chip down.
func (s *TSL4531) powered(ctx context.Context, access func() error) error {
	if err := s.enable(ctx); err != nil {
		return err
	}
	if err := access(); err != nil {
		_ = s.disable(ctx)
		return err
	}
	return s.disable(ctx)
}
