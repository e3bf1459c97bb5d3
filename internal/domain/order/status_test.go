package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{in: "PENDING", want: StatusPending, ok: true},
		{in: "shipped", want: StatusShipped, ok: true},
		{in: "  Cancelled ", want: StatusCancelled, ok: true},
		{in: "", ok: false},
		{in: "DELIVERED", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_CanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCompleted, StatusCancelled},
		StatusShipped:    {StatusCompleted},
		StatusCompleted:  nil,
		StatusCancelled:  nil,
	}

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, Status("LOST").CanTransition(StatusShipped))
	assert.False(t, StatusPending.CanTransition("LOST"))
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestErrors(t *testing.T) {
	assert.Equal(t, "product 7 not found", (&NotFoundError{Entity: EntityProduct, ID: 7}).Error())
	assert.Equal(t, "items: at least one item is required",
		(&ValidationError{Field: "items", Reason: "at least one item is required"}).Error())
	assert.Equal(t, `unknown order status "LOST"`, (&InvalidTransitionError{To: "LOST"}).Error())
	assert.Equal(t, `cannot change order status from PENDING: unknown status "LOST"`,
		(&InvalidTransitionError{From: StatusPending, To: "LOST"}).Error())
	assert.Equal(t, "cannot change order status from SHIPPED to PENDING",
		(&InvalidTransitionError{From: StatusShipped, To: "PENDING"}).Error())
}

func TestCheckReplace(t *testing.T) {
	assert.NoError(t, CheckReplace(StatusPending, StatusPending))
	assert.NoError(t, CheckReplace(StatusPending, StatusShipped))

	err := CheckReplace(StatusCancelled, StatusShipped)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusCancelled, ite.From)
	assert.Equal(t, "SHIPPED", ite.To)
}
