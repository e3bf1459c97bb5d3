// Package events carries order changes from the transactional outbox to a
// message broker.
package events

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/orderdesk/internal/domain/order"
)

// Event kinds written to the outbox.
const (
	KindOrderPlaced        = "order.placed"
	KindOrderStatusChanged = "order.status_changed"
)

// Event is one outbox record. ID is the outbox sequence number, EventID is
// the stable identity consumers deduplicate on.
type Event struct {
	ID        int64
	EventID   uuid.UUID
	OrderID   int64
	Kind      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// OrderPayload is the JSON body of every order event.
type OrderPayload struct {
	OrderID        int64        `json:"orderId"`
	UserID         int64        `json:"userId"`
	Status         order.Status `json:"status"`
	PreviousStatus order.Status `json:"previousStatus,omitempty"`
	Total          string       `json:"total"`
	Items          int          `json:"items"`
	At             time.Time    `json:"at"`
}

// ForOrder builds the event describing o after a Save. prev is empty for a
// newly placed order. It reports false when nothing worth publishing changed.
func ForOrder(o *order.Order, prev order.Status) (Event, bool, error) {
	kind := KindOrderStatusChanged
	switch {
	case prev == "":
		kind = KindOrderPlaced
	case prev == o.Status:
		return Event{}, false, nil
	}

	payload, err := json.Marshal(OrderPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: prev,
		Total:          o.Total.StringFixed(2),
		Items:          len(o.Items),
		At:             o.UpdatedAt,
	})
	if err != nil {
		return Event{}, false, errors.Wrap(err, "marshal order event")
	}

	return Event{
		EventID:   uuid.New(),
		OrderID:   o.ID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: o.UpdatedAt,
	}, true, nil
}
