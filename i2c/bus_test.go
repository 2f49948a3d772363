package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestGenericBus_Transactions(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x29, W: []byte{0x80, 0x03}},
			{Addr: 0x29, W: []byte{0x84}},
			{Addr: 0x29, R: []byte{0x10, 0x00}},
		},
	}
	bus := NewBus(playback)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, 0x29, []byte{0x80, 0x03}))
	require.NoError(t, bus.WriteToAddr(ctx, 0x29, []byte{0x84}))
	data := make([]byte, 2)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x29, data))

	assert.Equal(t, []byte{0x10, 0x00}, data)
	assert.NoError(t, bus.Close())
}

func TestGenericBus_UnexpectedTransaction(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	bus := NewBus(playback)

	err := bus.WriteToAddr(context.Background(), 0x29, []byte{0x80})

	assert.Error(t, err)
}

func TestGenericBus_SetSpeed(t *testing.T) {
	bus := NewBus(&i2ctest.Playback{})

	assert.NoError(t, bus.SetSpeed(context.Background(), 400_000))
	assert.Error(t, bus.SetSpeed(context.Background(), 0))
}
