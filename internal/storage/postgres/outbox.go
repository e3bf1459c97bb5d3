package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderdesk/internal/events"
)

const (
	claimEventsSQL = `SELECT id, event_id, order_id, kind, payload, created_at
		FROM order_events WHERE sent_at IS NULL ORDER BY id LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markEventsSentSQL = `UPDATE order_events SET sent_at = now() WHERE id = ANY($1)`
)

var _ events.Source = (*Outbox)(nil)

// Outbox reads the order_events table. Concurrent relays never claim the
// same row.
type Outbox struct {
	pool *pgxpool.Pool
}

// NewOutbox returns an Outbox that uses the given pool.
func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Claim locks up to limit unsent events, hands them to publish and marks
// them sent in the same transaction.
func (b *Outbox) Claim(ctx context.Context, limit int, publish func(context.Context, []events.Event) error) (int, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, claimEventsSQL, limit)
	if err != nil {
		return 0, errors.Wrap(err, "claim events")
	}
	batch, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return 0, errors.Wrap(err, "claim events")
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := publish(ctx, batch); err != nil {
		return 0, errors.Wrap(err, "publish")
	}

	ids := make([]int64, len(batch))
	for i, e := range batch {
		ids[i] = e.ID
	}
	if _, err := tx.Exec(ctx, markEventsSentSQL, ids); err != nil {
		return 0, errors.Wrap(err, "mark sent")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return len(batch), nil
}

func scanEvent(row pgx.CollectableRow) (events.Event, error) {
	var (
		e       events.Event
		payload []byte
	)
	err := row.Scan(&e.ID, &e.EventID, &e.OrderID, &e.Kind, &payload, &e.CreatedAt)
	e.Payload = payload
	return e, err
}
