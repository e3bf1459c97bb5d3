package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/events"
)

const (
	orderColumns = `id, user_id, full_name, phone, address_line1, address_line2, city, region,
		postal_code, country, total, status, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (user_id, full_name, phone, address_line1, address_line2, city, region,
		postal_code, country, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`

	lockOrderSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	updateOrderSQL = `UPDATE orders SET user_id = $2, full_name = $3, phone = $4, address_line1 = $5,
		address_line2 = $6, city = $7, region = $8, postal_code = $9, country = $10, total = $11,
		status = $12, created_at = $13, updated_at = $14
		WHERE id = $1`

	insertItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4) RETURNING id`

	updateItemSQL = `UPDATE order_items SET product_id = $3, quantity = $4, unit_price = $5
		WHERE id = $1 AND order_id = $2`

	pruneItemsSQL = `DELETE FROM order_items WHERE order_id = $1 AND NOT (id = ANY($2))`

	insertEventSQL = `INSERT INTO order_events (event_id, order_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL       = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersSQL     = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id`
	listUserOrdersSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at, id`

	listItemsSQL = `SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Each
// Save writes the order row, its items and an outbox event in one
// transaction.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Save inserts o when o.ID is zero and replaces the stored aggregate
// otherwise. The stored status is read under a row lock and must allow the
// new one. Ids are written back to o only after commit.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c := o.Clone()
	prev, err := saveOrderRow(ctx, tx, c)
	if err != nil {
		return err
	}
	if err := saveItems(ctx, tx, c); err != nil {
		return err
	}

	ev, ok, err := events.ForOrder(c, prev)
	if err != nil {
		return err
	}
	if ok {
		if _, err := tx.Exec(ctx, insertEventSQL,
			ev.EventID, ev.OrderID, ev.Kind, []byte(ev.Payload), ev.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "insert order event")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}

	o.ID = c.ID
	copy(o.Items, c.Items)
	return nil
}

func saveOrderRow(ctx context.Context, tx pgx.Tx, o *order.Order) (order.Status, error) {
	s := o.Shipping
	if o.ID == 0 {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.UserID, s.FullName, s.Phone, s.AddressLine1, s.AddressLine2, s.City, s.Region,
			s.PostalCode, s.Country, o.Total, string(o.Status), o.CreatedAt, o.UpdatedAt,
		).Scan(&o.ID)
		if err != nil {
			return "", errors.Wrap(err, "insert order")
		}
		return "", nil
	}

	var prev string
	if err := tx.QueryRow(ctx, lockOrderSQL, o.ID).Scan(&prev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", order.ErrNotFound
		}
		return "", errors.Wrapf(err, "lock order %d", o.ID)
	}
	if err := order.CheckReplace(order.Status(prev), o.Status); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, updateOrderSQL,
		o.ID, o.UserID, s.FullName, s.Phone, s.AddressLine1, s.AddressLine2, s.City, s.Region,
		s.PostalCode, s.Country, o.Total, string(o.Status), o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return "", errors.Wrapf(err, "update order %d", o.ID)
	}
	return order.Status(prev), nil
}

func saveItems(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	keep := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		if it.ID != 0 {
			keep = append(keep, it.ID)
		}
	}
	if _, err := tx.Exec(ctx, pruneItemsSQL, o.ID, keep); err != nil {
		return errors.Wrapf(err, "prune items of order %d", o.ID)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == 0 {
			if err := tx.QueryRow(ctx, insertItemSQL,
				o.ID, it.ProductID, it.Quantity, it.UnitPrice,
			).Scan(&it.ID); err != nil {
				return errors.Wrapf(err, "insert item %d of order %d", i, o.ID)
			}
			continue
		}
		if _, err := tx.Exec(ctx, updateItemSQL,
			it.ID, o.ID, it.ProductID, it.Quantity, it.UnitPrice,
		); err != nil {
			return errors.Wrapf(err, "update item %d of order %d", it.ID, o.ID)
		}
	}
	return nil
}

// FindByID returns the order with its items.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	orders := []order.Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// FindByUser returns every order of userID ordered by creation time, then id.
func (r *OrderRepository) FindByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.list(ctx, listUserOrdersSQL, userID)
}

// FindAll returns every order ordered by creation time, then id.
func (r *OrderRepository) FindAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills Items of every order with one query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		idx[o.ID] = i
		ids[i] = o.ID
		orders[i].Items = []order.Item{}
	}

	rows, err := r.pool.Query(ctx, listItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it      order.Item
			orderID int64
		)
		if err := rows.Scan(&it.ID, &orderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return errors.Wrap(err, "scan order item")
		}
		i := idx[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	s := &o.Shipping
	err := row.Scan(
		&o.ID, &o.UserID, &s.FullName, &s.Phone, &s.AddressLine1, &s.AddressLine2, &s.City, &s.Region,
		&s.PostalCode, &s.Country, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.CreatedAt = o.CreatedAt.In(time.UTC)
	o.UpdatedAt = o.UpdatedAt.In(time.UTC)
	return o, err
}
