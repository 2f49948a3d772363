package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/lightsense"
)

// fakeDevice answers each report with the next scripted response.
type fakeDevice struct {
	requests  [][]byte
	responses [][]byte
	closed    int
}

func (f *fakeDevice) Write(b []byte) (int, error) {
	f.requests = append(f.requests, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeDevice) Read(b []byte) (int, error) {
	if len(f.responses) == 0 {
		return 0, errors.New("no response queued")
	}
	copy(b, f.responses[0])
	f.responses = f.responses[1:]
	return len(b), nil
}

func (f *fakeDevice) Close() error {
	f.closed++
	return nil
}

func report(b ...byte) []byte {
	r := make([]byte, 64)
	copy(r, b)
	return r
}

func newTestAdapter(dev *fakeDevice) *MCP2221 {
	return NewMCP2221(WithResponseWait(0), WithOpener(func(id int) (Device, error) {
		return dev, nil
	}))
}

func TestMCP2221_WriteToAddr(t *testing.T) {
	dev := &fakeDevice{responses: [][]byte{report(cmdI2CWriteData, 0x00)}}
	a := newTestAdapter(dev)

	err := a.WriteToAddr(context.Background(), 0x29, []byte{0x80, 0x03})

	require.NoError(t, err)
	require.Len(t, dev.requests, 1)
	assert.Equal(t, []byte{0x90, 0x02, 0x00, 0x52, 0x80, 0x03}, dev.requests[0][:6])
	assert.Equal(t, 1, dev.closed)
}

func TestMCP2221_WriteToAddrBusy(t *testing.T) {
	dev := &fakeDevice{responses: [][]byte{report(cmdI2CWriteData, 0x01)}}
	a := newTestAdapter(dev)

	err := a.WriteToAddr(context.Background(), 0x29, []byte{0x80})

	assert.ErrorIs(t, err, lightsense.ErrBusBusy)
}

func TestMCP2221_ReadFromAddr(t *testing.T) {
	dev := &fakeDevice{responses: [][]byte{
		report(cmdI2CReadData, 0x00),
		report(cmdI2CGetData, 0x00, 0x00, 0x02, 0x34, 0x12),
	}}
	a := newTestAdapter(dev)
	buf := make([]byte, 2)

	err := a.ReadFromAddr(context.Background(), 0x29, buf)

	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12}, buf)
	require.Len(t, dev.requests, 2)
	assert.Equal(t, []byte{0x91, 0x02, 0x00, 0x53}, dev.requests[0][:4])
	assert.Equal(t, byte(0x40), dev.requests[1][0])
}

func TestMCP2221_ReadFromAddr_ErrorCases(t *testing.T) {
	tests := []struct {
		name    string
		getData []byte
	}{
		{"engine error", report(cmdI2CGetData, getDataEngineError)},
		{"size error", report(cmdI2CGetData, 0x00, 0x00, readSizeError)},
		{"short data", report(cmdI2CGetData, 0x00, 0x00, 0x01, 0xAA)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{responses: [][]byte{report(cmdI2CReadData, 0x00), tt.getData}}
			a := newTestAdapter(dev)

			err := a.ReadFromAddr(context.Background(), 0x29, make([]byte, 2))

			assert.Error(t, err)
		})
	}
}

func TestMCP2221_SetSpeed(t *testing.T) {
	dev := &fakeDevice{responses: [][]byte{report(cmdStatusSetParameters, 0x00, 0x00, speedAccepted)}}
	a := newTestAdapter(dev)

	err := a.SetSpeed(context.Background(), 100_000)

	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x00, 0x00, 0x20, 117}, dev.requests[0][:5])
}

func TestMCP2221_SetSpeedRejected(t *testing.T) {
	dev := &fakeDevice{responses: [][]byte{report(cmdStatusSetParameters, 0x00, 0x00, 0x21)}}
	a := newTestAdapter(dev)

	err := a.SetSpeed(context.Background(), 400_000)

	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestMCP2221_SpeedDivider(t *testing.T) {
	div, err := speedDivider(400_000)
	require.NoError(t, err)
	assert.Equal(t, byte(27), div)

	_, err = speedDivider(0)
	assert.Error(t, err)
	_, err = speedDivider(10_000)
	assert.Error(t, err, "divider does not fit one byte")
	_, err = speedDivider(5_000_000)
	assert.Error(t, err)
}

func TestMCP2221_Status(t *testing.T) {
	resp := report(cmdStatusSetParameters)
	resp[9], resp[10] = 0x02, 0x00
	resp[11], resp[12] = 0x01, 0x00
	resp[13] = 3
	resp[14] = 117
	resp[15] = 5
	resp[16], resp[17] = 0x52, 0x00
	resp[25] = 1
	dev := &fakeDevice{responses: [][]byte{resp}}
	a := newTestAdapter(dev)

	status, err := a.Status(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   3,
		I2CSpeedDivider:        117,
		I2CTimeout:             5,
		CurrentAddress:         "5200",
		LastWriteRequestedSize: 2,
		LastWriteSentSize:      1,
		ReadPending:            1,
	}, status)
}

func TestMCP2221_Release(t *testing.T) {
	dev := &fakeDevice{responses: [][]byte{report(cmdStatusSetParameters)}}
	a := newTestAdapter(dev)

	require.NoError(t, a.Release(context.Background()))
	assert.Equal(t, byte(paramCancelTransfer), dev.requests[0][2])
}

func TestMCP2221_MismatchedEcho(t *testing.T) {
	dev := &fakeDevice{responses: [][]byte{report(0x51)}}
	a := newTestAdapter(dev)

	_, err := a.Status(context.Background())

	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestMCP2221_OpenFailure(t *testing.T) {
	a := NewMCP2221(WithOpener(func(id int) (Device, error) {
		return nil, ErrDeviceNotFound
	}))

	err := a.WriteToAddr(context.Background(), 0x29, []byte{0x80})

	assert.ErrorIs(t, err, ErrDeviceNotFound)
}
