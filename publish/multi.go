package publish

import (
	"context"
	"errors"
	"sync"

	"github.com/mklimuk/lightsense"
)

var _ lightsense.Publisher = Multi{}

// Multi fans a publication out to several publishers. done is called once,
// after every publisher reported, with their errors joined.
type Multi []lightsense.Publisher

func (m Multi) Publish(ctx context.Context, topic string, payload []byte, done lightsense.PublishCallback) {
	if len(m) == 0 {
		if done != nil {
			done(topic, nil)
		}
		return
	}
	var mx sync.Mutex
	var errs []error
	pending := len(m)
	collect := func(_ string, err error) {
		mx.Lock()
		if err != nil {
			errs = append(errs, err)
		}
		pending--
		last := pending == 0
		joined := errors.Join(errs...)
		mx.Unlock()
		if last && done != nil {
			done(topic, joined)
		}
	}
	for _, p := range m {
		p.Publish(ctx, topic, payload, collect)
	}
}
