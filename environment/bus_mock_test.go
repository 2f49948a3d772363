package environment

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mklimuk/lightsense"
)

// MockI2CBus is a mock implementation of lightsense.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSpeedBus adds bus clock control to MockI2CBus
type MockSpeedBus struct {
	MockI2CBus
}

func (m *MockSpeedBus) SetSpeed(ctx context.Context, hz int) error {
	args := m.Called(ctx, hz)
	return args.Error(0)
}

func (m *MockI2CBus) expectWrite(buffer ...byte) *mock.Call {
	return m.On("WriteToAddr", mock.Anything, byte(TSL4531Address), buffer).Return(nil).Once()
}

func (m *MockI2CBus) expectRead(data ...byte) *mock.Call {
	return m.On("ReadFromAddr", mock.Anything, byte(TSL4531Address), mock.Anything).Return(data, nil).Once()
}

// expectInit queues a successful initialization reporting the given ID byte.
func (m *MockI2CBus) expectInit(id byte) {
	mock.InOrder(
		m.expectWrite(0x80, 0x03),
		m.expectWrite(0x80),
		m.expectRead(0x03),
		m.expectWrite(0x8A),
		m.expectRead(id),
		m.expectWrite(0x80, 0x00),
	)
}

type publication struct {
	topic   string
	payload []byte
}

type recordingPublisher struct {
	mx    sync.Mutex
	items []publication
	seen  chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{seen: make(chan struct{}, 64)}
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte, done lightsense.PublishCallback) {
	p.mx.Lock()
	p.items = append(p.items, publication{topic: topic, payload: append([]byte(nil), payload...)})
	p.mx.Unlock()
	select {
	case p.seen <- struct{}{}:
	default:
	}
	if done != nil {
		go done(topic, nil)
	}
}

func (p *recordingPublisher) published() []publication {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]publication(nil), p.items...)
}

// recordingSleep records requested delays without blocking.
type recordingSleep struct {
	mx     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(d time.Duration) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.delays = append(r.delays, d)
}

func (r *recordingSleep) recorded() []time.Duration {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
