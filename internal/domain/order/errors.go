package order

import (
	"fmt"
	"strconv"
)

// Entity names the kind of record a NotFoundError refers to.
type Entity string

const (
	EntityUser    Entity = "user"
	EntityProduct Entity = "product"
	EntityOrder   Entity = "order"
	EntityAddress Entity = "address"
)

// NotFoundError indicates a referenced record does not exist. It unwraps to
// the sentinel reported by the collaborator.
type NotFoundError struct {
	Entity Entity
	ID     int64
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ValidationError indicates malformed placement input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// InvalidTransitionError indicates a status change the lifecycle forbids,
// including unknown target values. Stores return it too when the status
// they hold no longer allows the change.
type InvalidTransitionError struct {
	From Status
	To   string
}

func (e *InvalidTransitionError) Error() string {
	switch {
	case Status(e.To).Valid() && e.From != "":
		return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
	case e.From != "":
		return fmt.Sprintf("cannot change order status from %s: unknown status %s", e.From, strconv.Quote(e.To))
	default:
		return "unknown order status " + strconv.Quote(e.To)
	}
}

// StorageError wraps a failure of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
