package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by a Repository when no order has the requested id.
var ErrNotFound = errors.New("order not found")

// ShippingSnapshot is the delivery address copied by value into an order at
// placement time. It never references a live address record.
type ShippingSnapshot struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	Region       string `json:"region"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

// Item is a single priced line of an order. UnitPrice is the catalog price
// captured when the order was placed.
type Item struct {
	ID        int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns UnitPrice * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the order aggregate: the order together with its ordered items.
type Order struct {
	ID        int64
	UserID    int64
	Shipping  ShippingSnapshot
	Items     []Item
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers cannot alias the item slice.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

// SumItems returns the exact sum of every line subtotal.
func SumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Repository persists order aggregates. Save inserts the aggregate when
// o.ID is zero and assigns order and item ids; otherwise it replaces the
// stored aggregate. Both paths are atomic. On replace, Save returns
// *InvalidTransitionError unless the stored status equals o.Status or may
// move to it, checked while the stored aggregate is locked. List methods
// return orders sorted by creation time, then id, with items eagerly loaded
// in insertion order.
type Repository interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindByUser(ctx context.Context, userID int64) ([]Order, error)
	FindAll(ctx context.Context) ([]Order, error)
}

// CheckReplace is run by stores under their lock before replacing an
// aggregate held in status stored with one in status next.
func CheckReplace(stored, next Status) error {
	if stored == next || stored.CanTransition(next) {
		return nil
	}
	return &InvalidTransitionError{From: stored, To: string(next)}
}
