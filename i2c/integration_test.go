//go:build integration

package i2c

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/lightsense/environment"
)

// TestTSL4531_OnHardware needs a TSL4531 wired to LIGHTSENSE_I2C_DEVICE,
// e.g. /dev/i2c-1.
func TestTSL4531_OnHardware(t *testing.T) {
	dev := os.Getenv("LIGHTSENSE_I2C_DEVICE")
	if dev == "" {
		t.Skip("LIGHTSENSE_I2C_DEVICE not set")
	}
	bus, err := NewGenericBus(dev)
	require.NoError(t, err)
	defer func() { _ = bus.Close() }()
	ctx := context.Background()

	s := environment.NewTSL4531(ctx, bus)
	require.True(t, s.Ready())
	assert.NotEqual(t, environment.PartUnknown, s.PartID())

	require.NoError(t, s.SetIntegrationTime(ctx, environment.Integration100ms))
	require.NoError(t, s.ReadLux(ctx))
	low := s.GetLux()
	require.NoError(t, s.SetIntegrationTime(ctx, environment.Integration400ms))
	require.NoError(t, s.ReadLux(ctx))
	t.Logf("lux at 100ms: %d, at 400ms: %d", low, s.GetLux())

	s.Start(ctx, 50*time.Millisecond)
	time.Sleep(time.Second)
	s.Stop()
	s.Wait()
	assert.False(t, s.Running())
}
