package address

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for the address book.
var (
	ErrNotFound     = errors.New("address not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Address types.
const (
	TypeShipping = "shipping"
	TypeBilling  = "billing"
)

// Address is a saved delivery address owned by one user. Orders copy it by
// value, so later edits never reach placed orders.
type Address struct {
	ID           int64
	UserID       int64
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	Region       string
	PostalCode   string
	Country      string
	Type         string
	IsDefault    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists addresses. Create and Update clear IsDefault on the
// owner's other addresses when a.IsDefault is set. GetByID, Update and Delete
// return ErrNotFound for unknown ids. ListByUser sorts by creation time, then
// id.
type Repository interface {
	Create(ctx context.Context, a *Address) error
	GetByID(ctx context.Context, id int64) (*Address, error)
	ListByUser(ctx context.Context, userID int64) ([]Address, error)
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, id int64) error
}
