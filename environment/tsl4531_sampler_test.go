package environment

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCounts(counts uint16) MockTSL4531Opt {
	return WithMockCounts(func(ctx context.Context) (uint16, error) {
		return counts, nil
	})
}

func TestTSL4531_ConvertLux(t *testing.T) {
	tests := []struct {
		low, high  byte
		multiplier uint16
		expected   uint16
	}{
		{0x00, 0x00, 1, 0},
		{0x10, 0x00, 4, 64},
		{0x00, 0x01, 2, 512},
		{0xE8, 0x03, 1, 1000},
		{0xFF, 0xFF, 1, 65535},
		{0xFF, 0xFF, 4, 65532},
		{0x00, 0x80, 2, 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%02x%02x*%d", test.high, test.low, test.multiplier), func(t *testing.T) {
			assert.Equal(t, test.expected, convertLux(test.low, test.high, test.multiplier))
		})
	}
}

func TestTSL4531_ReadLux(t *testing.T) {
	bus := NewMockTSL4531(fixedCounts(0x0010))
	pub := newRecordingPublisher()
	sleep := &recordingSleep{}
	s := NewTSL4531(context.Background(), bus, WithPublisher(pub), WithSleep(sleep.sleep))
	require.True(t, s.Ready())
	require.NoError(t, s.SetIntegrationTime(context.Background(), Integration100ms))

	err := s.ReadLux(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint16(64), s.GetLux())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 0}, sleep.recorded())
	assert.False(t, bus.Powered())
	items := pub.published()
	require.Len(t, items, 1)
	assert.Equal(t, TopicLux, items[0].topic)
	require.Len(t, items[0].payload, 2)
	assert.Equal(t, uint16(64), binary.NativeEndian.Uint16(items[0].payload))
}

func TestTSL4531_ReadLux_CustomTopic(t *testing.T) {
	pub := newRecordingPublisher()
	s := NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(7)),
		WithPublisher(pub), WithTopic("kitchen/lux"), WithSleep(func(time.Duration) {}))

	require.NoError(t, s.ReadLux(context.Background()))

	items := pub.published()
	require.Len(t, items, 1)
	assert.Equal(t, "kitchen/lux", items[0].topic)
}

func TestTSL4531_ReadLux_NoPublisher(t *testing.T) {
	s := NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(300)), WithSleep(func(time.Duration) {}))

	require.NoError(t, s.ReadLux(context.Background()))
	assert.Equal(t, uint16(300), s.GetLux())
}

func TestTSL4531_ReadLux_ErrorCases(t *testing.T) {
	tests := []struct {
		name   string
		fault  FaultFunc
		sleeps []time.Duration
	}{
		{
			name: "enable fails",
			fault: func(write bool, reg byte, buffer []byte) error {
				if write && reg == tsl4531RegControl && len(buffer) > 1 && buffer[1] == tsl4531PowerOn {
					return errBus
				}
				return nil
			},
		},
		{
			name: "data read fails",
			fault: func(write bool, reg byte, buffer []byte) error {
				if !write && reg == tsl4531RegDataLow {
					return errBus
				}
				return nil
			},
			sleeps: []time.Duration{400 * time.Millisecond},
		},
		{
			name: "disable fails",
			fault: func(write bool, reg byte, buffer []byte) error {
				if write && reg == tsl4531RegControl && len(buffer) > 1 && buffer[1] == tsl4531PowerOff {
					return errBus
				}
				return nil
			},
			sleeps: []time.Duration{400 * time.Millisecond},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			armed := false
			bus := NewMockTSL4531(fixedCounts(500), WithMockFault(func(write bool, reg byte, buffer []byte) error {
				if !armed {
					return nil
				}
				return tt.fault(write, reg, buffer)
			}))
			pub := newRecordingPublisher()
			sleep := &recordingSleep{}
			s := NewTSL4531(context.Background(), bus, WithPublisher(pub), WithSleep(sleep.sleep))
			require.True(t, s.Ready())

			armed = true
			err := s.ReadLux(context.Background())

			assert.ErrorIs(t, err, errBus)
			assert.Zero(t, s.GetLux())
			assert.Empty(t, pub.published())
			assert.Equal(t, tt.sleeps, sleep.recorded())
		})
	}
}

func TestTSL4531_StartStop_SingleCycle(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	var mx sync.Mutex
	var sleeps []time.Duration
	first := true
	sleep := func(d time.Duration) {
		mx.Lock()
		sleeps = append(sleeps, d)
		block := first
		first = false
		mx.Unlock()
		if block {
			close(entered)
			<-gate
		}
	}
	pub := newRecordingPublisher()
	s := NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(1)), WithPublisher(pub), WithSleep(sleep))

	s.Start(context.Background(), time.Second)
	<-entered
	assert.True(t, s.Running())
	s.Stop()
	close(gate)
	s.Wait()

	assert.False(t, s.Running())
	mx.Lock()
	assert.Equal(t, []time.Duration{400 * time.Millisecond, time.Second}, sleeps)
	mx.Unlock()
	assert.Len(t, pub.published(), 1)
}

func TestTSL4531_Start_SingleLoop(t *testing.T) {
	var inFlight, maxInFlight int32
	var mx sync.Mutex
	var cycles []time.Duration
	sleep := func(d time.Duration) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		if d >= time.Second {
			mx.Lock()
			cycles = append(cycles, d)
			mx.Unlock()
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}
	pub := newRecordingPublisher()
	s := NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(1)), WithPublisher(pub), WithSleep(sleep))

	s.Start(context.Background(), time.Second)
	s.Start(context.Background(), 2*time.Second)

	require.Eventually(t, func() bool {
		mx.Lock()
		defer mx.Unlock()
		return len(cycles) > 0 && cycles[len(cycles)-1] == 2*time.Second
	}, time.Second, time.Millisecond)
	s.Stop()
	s.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestTSL4531_Start_ContextCancel(t *testing.T) {
	pub := newRecordingPublisher()
	s := NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(1)),
		WithPublisher(pub), WithSleep(func(time.Duration) { time.Sleep(time.Millisecond) }))
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx, 0)
	<-pub.seen
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampling loop did not exit after cancellation")
	}
	assert.False(t, s.Running())
}

func TestTSL4531_Start_Restart(t *testing.T) {
	pub := newRecordingPublisher()
	s := NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(1)),
		WithPublisher(pub), WithSleep(func(time.Duration) { time.Sleep(time.Millisecond) }))

	s.Start(context.Background(), 0)
	<-pub.seen
	s.Stop()
	s.Wait()
	before := len(pub.published())

	s.Start(context.Background(), 0)
	require.Eventually(t, func() bool {
		return len(pub.published()) > before
	}, time.Second, time.Millisecond)
	s.Stop()
	s.Wait()
}

func TestTSL4531_Start_AfterCancelInFlight(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	sleep := func(time.Duration) {
		blocked := false
		once.Do(func() { blocked = true })
		if blocked {
			close(entered)
			<-gate
			return
		}
		time.Sleep(time.Millisecond)
	}
	pub := newRecordingPublisher()
	s := NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(1)), WithPublisher(pub), WithSleep(sleep))
	first, cancel := context.WithCancel(context.Background())

	s.Start(first, 0)
	<-entered
	cancel()
	assert.False(t, s.Running())
	s.Start(context.Background(), 0)
	assert.True(t, s.Running())
	close(gate)

	require.Eventually(t, func() bool {
		return len(pub.published()) > 1
	}, time.Second, time.Millisecond)
	assert.True(t, s.Running())
	s.Stop()
	s.Wait()
	assert.False(t, s.Running())
}

func TestTSL4531_Start_SurvivesTransientFaults(t *testing.T) {
	var failures atomic.Int32
	failures.Store(3)
	bus := NewMockTSL4531(fixedCounts(250), WithMockFault(func(write bool, reg byte, buffer []byte) error {
		if !write && reg == tsl4531RegDataLow && failures.Load() > 0 {
			failures.Add(-1)
			return errBus
		}
		return nil
	}))
	pub := newRecordingPublisher()
	s := NewTSL4531(context.Background(), bus,
		WithPublisher(pub), WithSleep(func(time.Duration) { time.Sleep(time.Millisecond) }))

	s.Start(context.Background(), 0)
	<-pub.seen
	s.Stop()
	s.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, uint16(250), s.GetLux())
	assert.NotEmpty(t, pub.published())
}

func TestTSL4531_ReadLux_FollowsRunFlag(t *testing.T) {
	pub := newRecordingPublisher()
	var calls atomic.Int32
	var s *TSL4531
	s = NewTSL4531(context.Background(), NewMockTSL4531(fixedCounts(9)), WithPublisher(pub),
		WithSleep(func(d time.Duration) {
			if d == 5*time.Millisecond && calls.Add(1) == 3 {
				s.Stop()
			}
		}))
	s.loopMx.Lock()
	s.running = true
	s.cycle = 5 * time.Millisecond
	s.loopMx.Unlock()

	err := s.ReadLux(context.Background())

	assert.NoError(t, err)
	assert.Len(t, pub.published(), 3)
}
