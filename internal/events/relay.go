package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Source hands out unsent outbox events. Claim passes up to limit pending
// events to publish and marks them sent only if publish returns nil. Events
// claimed by one caller are invisible to concurrent callers until the claim
// ends.
type Source interface {
	Claim(ctx context.Context, limit int, publish func(context.Context, []Event) error) (int, error)
}

// Publisher delivers a batch of events to consumers.
type Publisher interface {
	Publish(ctx context.Context, batch []Event) error
}

// Relay periodically moves events from a Source to a Publisher.
type Relay struct {
	src      Source
	pub      Publisher
	interval time.Duration
	batch    int
}

// NewRelay creates a Relay. Non-positive interval and batch fall back to one
// second and 100 events.
func NewRelay(src Source, pub Publisher, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{src: src, pub: pub, interval: interval, batch: batch}
}

// Flush publishes pending events until the source is drained or an error
// occurs, returning how many were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var total int
	for {
		n, err := r.src.Claim(ctx, r.batch, r.pub.Publish)
		total += n
		if err != nil {
			return total, errors.Wrap(err, "relay batch")
		}
		if n < r.batch {
			return total, nil
		}
	}
}

// Run flushes on every tick until ctx is done. Publish failures are logged
// and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("relay")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.Flush(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Warn("Outbox relay failed", zap.Error(err), zap.Int("sent", n))
				continue
			}
			if n > 0 {
				lg.Debug("Outbox relayed", zap.Int("sent", n))
			}
		}
	}
}
