package order

import "strings"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// progress ranks the fulfillment path. CANCELLED is off the path.
var progress = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusCompleted:  3,
}

// Statuses lists every valid status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled}
}

// ParseStatus converts a client supplied string into a Status. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", false
	}
	return st, true
}

// Valid reports whether s belongs to the status enumeration.
func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := progress[s]
	return ok
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether an order in status s may move to next.
// Orders only move forward along PENDING, PROCESSING, SHIPPED, COMPLETED
// (skipping steps is allowed), and may be cancelled before shipping.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return s == StatusPending || s == StatusProcessing
	}
	return progress[next] > progress[s]
}
