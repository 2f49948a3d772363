package environment

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

// Start launches periodic sampling with cycle idle time between readings.
// Only one sampling loop runs per handle: calling Start while a loop is alive
// updates the cycle and the context, and that loop carries on under ctx from
// its next cycle.
func (s *TSL4531) Start(ctx context.Context, cycle time.Duration) {
	s.loopMx.Lock()
	defer s.loopMx.Unlock()
	s.cycle = cycle
	s.running = true
	s.loopCtx = ctx
	if s.loopDone != nil {
		return
	}
	done := make(chan struct{})
	s.loopDone = done
	go func() {
		defer close(done)
		_ = s.sample(ctx, true)
	}()
}

// Stop clears the run flag. The loop finishes the cycle in progress,
// including its idle time, before it exits.
func (s *TSL4531) Stop() {
	s.loopMx.Lock()
	defer s.loopMx.Unlock()
	s.running = false
}

// Running reports whether sampling has been requested and its context is
// still live.
func (s *TSL4531) Running() bool {
	s.loopMx.Lock()
	defer s.loopMx.Unlock()
	return s.running && (s.loopCtx == nil || s.loopCtx.Err() == nil)
}

// Wait blocks until the sampling goroutine has exited.
func (s *TSL4531) Wait() {
	s.loopMx.Lock()
	done := s.loopDone
	s.loopMx.Unlock()
	if done != nil {
		<-done
	}
}

// ReadLux runs the sampling cycle in the caller's goroutine. Unless the run
// flag is set by Start it performs exactly one cycle. Failures do not stop
// the loop; the error of the last cycle is returned.
func (s *TSL4531) ReadLux(ctx context.Context) error {
	return s.sample(ctx, false)
}

// GetLux returns the last converted reading.
func (s *TSL4531) GetLux() uint16 {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.lux
}

func (s *TSL4531) sample(ctx context.Context, detached bool) error {
	for {
		err := s.readCycle(ctx)
		next, ok := s.keepSampling(ctx, detached)
		if !ok {
			return err
		}
		ctx = next
	}
}

// keepSampling is the loop boundary and returns the context for the next
// cycle. A detached loop adopts the context of the latest Start and
// deregisters itself under the same lock Start uses, so a concurrent Start
// either keeps this loop alive or launches a new one. A detached loop that
// ends because its context is done clears the run flag.
func (s *TSL4531) keepSampling(ctx context.Context, detached bool) (context.Context, bool) {
	s.loopMx.Lock()
	defer s.loopMx.Unlock()
	if detached {
		ctx = s.loopCtx
	}
	if s.running && ctx.Err() == nil {
		return ctx, true
	}
	if detached {
		s.running = false
		s.loopCtx = nil
		s.loopDone = nil
	}
	return nil, false
}

func (s *TSL4531) readCycle(ctx context.Context) error {
	s.log.Info("starting read")
	if err := s.enable(ctx); err != nil {
		return err
	}

	s.mx.Lock()
	integration := s.integrationTime
	s.mx.Unlock()
	s.sleep(integration.Duration())

	data, err := s.readRegister(ctx, tsl4531RegDataLow, 2)
	if err != nil {
		s.log.Error("data read failed", "error", err)
		return fmt.Errorf("tsl4531: data read failed: %w", err)
	}
	if err := s.disable(ctx); err != nil {
		return err
	}

	lux := convertLux(data[0], data[1], integration.Multiplier())
	s.mx.Lock()
	s.lux = lux
	s.mx.Unlock()
	s.publish(ctx, lux)
	s.log.Info("read completed", "lux", lux)

	s.loopMx.Lock()
	cycle := s.cycle
	s.loopMx.Unlock()
	s.sleep(cycle)
	return nil
}

// convertLux scales the little-endian data register pair. The product is
// not saturated: it wraps when it exceeds 16 bits.
func convertLux(low, high byte, multiplier uint16) uint16 {
	return multiplier * (uint16(high)<<8 + uint16(low))
}

func (s *TSL4531) publish(ctx context.Context, lux uint16) {
	if s.publisher == nil {
		return
	}
	payload := make([]byte, 2)
	binary.NativeEndian.PutUint16(payload, lux)
	s.publisher.Publish(ctx, s.topic, payload, s.published)
}

// published receives publication results; they do not affect sampling.
func (s *TSL4531) published(topic string, err error) {}
