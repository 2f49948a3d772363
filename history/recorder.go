package history

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/mklimuk/lightsense/publish"
)

// Recorder stores the lux readings published on a local broker topic.
type Recorder struct {
	store     *Store
	sub       *publish.Subscription
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

type RecorderOpt func(*Recorder)

// WithRetention purges readings older than d after every save.
func WithRetention(d time.Duration) RecorderOpt {
	return func(r *Recorder) {
		r.retention = d
	}
}

func WithClock(now func() time.Time) RecorderOpt {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder subscribes to topic on broker right away so nothing published
// after it returns is missed.
func NewRecorder(store *Store, broker *publish.Local, topic string, opts ...RecorderOpt) *Recorder {
	r := &Recorder{
		store: store,
		sub:   broker.Subscribe(topic),
		now:   time.Now,
		log:   slog.Default().With("module", "history"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run records until ctx is done, then unsubscribes. Malformed payloads and
// storage errors are logged and skipped.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-r.sub.Channel():
			if !ok {
				return nil
			}
			r.record(ctx, msg)
		}
	}
}

func (r *Recorder) record(ctx context.Context, msg publish.Message) {
	if len(msg.Payload) != 2 {
		r.log.Warn("unexpected payload size", "topic", msg.Topic, "size", len(msg.Payload))
		return
	}
	now := r.now()
	reading := &Reading{
		Topic: msg.Topic,
		Lux:   binary.NativeEndian.Uint16(msg.Payload),
		Time:  now,
	}
	if err := r.store.Save(ctx, reading); err != nil {
		r.log.Error("could not save reading", "error", err)
		return
	}
	r.log.Debug("reading saved", "id", reading.ID, "lux", reading.Lux)
	if r.retention <= 0 {
		return
	}
	n, err := r.store.Purge(ctx, now.Add(-r.retention))
	if err != nil {
		r.log.Error("could not purge readings", "error", err)
		return
	}
	if n > 0 {
		r.log.Debug("readings purged", "count", n)
	}
}
