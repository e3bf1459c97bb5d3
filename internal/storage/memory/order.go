// Package memory provides in-process implementations of the domain
// repositories. They back the server when no database is configured and
// serve as fakes in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/events"
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ events.Source    = (*OrderRepository)(nil)
)

// OrderRepository keeps order aggregates in a map. Stored and returned
// aggregates are deep copies, so callers never share item slices with the
// store. Every Save also appends to an in-memory outbox.
type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[int64]*order.Order
	nextID   int64
	nextItem int64

	claim     sync.Mutex
	pending   []events.Event
	nextEvent int64
}

// NewOrderRepository returns an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[int64]*order.Order)}
}

// Save inserts o when o.ID is zero, assigning order and item ids, and
// replaces the stored aggregate otherwise. A replace whose status change the
// stored status does not allow fails with *order.InvalidTransitionError.
func (r *OrderRepository) Save(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev order.Status
	if o.ID != 0 {
		stored, ok := r.orders[o.ID]
		if !ok {
			return order.ErrNotFound
		}
		if err := order.CheckReplace(stored.Status, o.Status); err != nil {
			return err
		}
		prev = stored.Status
	}

	c := o.Clone()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	}
	for i := range c.Items {
		if c.Items[i].ID == 0 {
			r.nextItem++
			c.Items[i].ID = r.nextItem
		}
	}

	ev, ok, err := events.ForOrder(c, prev)
	if err != nil {
		return err
	}
	r.orders[c.ID] = c
	if ok {
		r.nextEvent++
		ev.ID = r.nextEvent
		r.pending = append(r.pending, ev)
	}

	o.ID = c.ID
	copy(o.Items, c.Items)
	return nil
}

// FindByID returns a copy of the order with the given id.
func (r *OrderRepository) FindByID(_ context.Context, id int64) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

// FindByUser returns copies of every order placed by userID.
func (r *OrderRepository) FindByUser(_ context.Context, userID int64) ([]order.Order, error) {
	return r.collect(func(o *order.Order) bool { return o.UserID == userID }), nil
}

// FindAll returns copies of every stored order.
func (r *OrderRepository) FindAll(_ context.Context) ([]order.Order, error) {
	return r.collect(func(*order.Order) bool { return true }), nil
}

func (r *OrderRepository) collect(match func(*order.Order) bool) []order.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]order.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if match(o) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Claim passes up to limit unsent events to publish and drops them from the
// outbox once publish succeeds.
func (r *OrderRepository) Claim(ctx context.Context, limit int, publish func(context.Context, []events.Event) error) (int, error) {
	r.claim.Lock()
	defer r.claim.Unlock()

	r.mu.RLock()
	n := min(limit, len(r.pending))
	batch := append([]events.Event(nil), r.pending[:n]...)
	r.mu.RUnlock()

	if n == 0 {
		return 0, nil
	}
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.pending = r.pending[n:]
	r.mu.Unlock()
	return n, nil
}
