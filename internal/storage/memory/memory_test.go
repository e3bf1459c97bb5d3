package memory

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/orderdesk/internal/domain/address"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
	"github.com/xenking/orderdesk/internal/domain/user"
	"github.com/xenking/orderdesk/internal/events"
)

func newOrder(userID int64, at time.Time) *order.Order {
	return &order.Order{
		UserID: userID,
		Items: []order.Item{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
			{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("4.50")},
		},
		Total:     decimal.RequireFromString("24.48"),
		Status:    order.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestOrderRepository_SaveAssignsIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := newOrder(1, now)
	require.NoError(t, repo.Save(ctx, first))
	second := newOrder(1, now)
	require.NoError(t, repo.Save(ctx, second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, int64(1), first.Items[0].ID)
	assert.Equal(t, int64(2), first.Items[1].ID)
	assert.Equal(t, int64(3), second.Items[0].ID)
}

func TestOrderRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(1, time.Now())
	require.NoError(t, repo.Save(ctx, o))

	o.Items[0].Quantity = 99
	o.Status = order.StatusShipped

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, order.StatusPending, got.Status)

	got.Items[1].Quantity = 42
	again, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[1].Quantity)
}

func TestOrderRepository_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(1, time.Now())
	require.NoError(t, repo.Save(ctx, o))

	o.Status = order.StatusProcessing
	require.NoError(t, repo.Save(ctx, o))

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Len(t, got.Items, 2)
}

func TestOrderRepository_SaveUnknownID(t *testing.T) {
	repo := NewOrderRepository()
	o := newOrder(1, time.Now())
	o.ID = 7

	err := repo.Save(context.Background(), o)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_SaveRejectsStaleStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(1, time.Now())
	require.NoError(t, repo.Save(ctx, o))

	cancelled, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	shipped := cancelled.Clone()

	cancelled.Status = order.StatusCancelled
	require.NoError(t, repo.Save(ctx, cancelled))

	// A writer that read PENDING before the cancel must not overwrite it.
	shipped.Status = order.StatusShipped
	err = repo.Save(ctx, shipped)
	var ite *order.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, order.StatusCancelled, ite.From)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
}

func TestOrderRepository_FindByIDMissing(t *testing.T) {
	_, err := NewOrderRepository().FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_ListOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	late := newOrder(1, base.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, late))
	early := newOrder(2, base)
	require.NoError(t, repo.Save(ctx, early))
	tie := newOrder(1, base)
	require.NoError(t, repo.Save(ctx, tie))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{early.ID, tie.ID, late.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	mine, err := repo.FindByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, tie.ID, mine[0].ID)
	assert.Equal(t, late.ID, mine[1].ID)

	none, err := repo.FindByUser(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(
		product.Product{Name: "Keyboard", Price: decimal.RequireFromString("49.90")},
		product.Product{ID: 10, Name: "Mouse", Price: decimal.RequireFromString("19.00")},
	)

	p, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", p.Name)

	np := &product.Product{Name: "Cable", Price: decimal.NewFromInt(5)}
	require.NoError(t, repo.Create(ctx, np))
	assert.Equal(t, int64(11), np.ID)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(10), list[1].ID)

	require.NoError(t, repo.SetPrice(10, decimal.RequireFromString("21.00")))
	p, err = repo.GetByID(ctx, 10)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("21.00")))

	_, err = repo.GetByID(ctx, 404)
	assert.ErrorIs(t, err, product.ErrNotFound)
	assert.ErrorIs(t, repo.SetPrice(404, decimal.Zero), product.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u := &user.User{Email: "Ann@Example.com", Role: user.RoleUser}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, int64(1), u.ID)

	got, err := repo.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got.Email)

	err = repo.Create(ctx, &user.User{Email: "ANN@example.com"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	_, err = repo.GetByID(ctx, 2)
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestOrderRepository_Outbox(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()

	o := newOrder(1, time.Now())
	require.NoError(t, repo.Save(ctx, o))
	o.Status = order.StatusShipped
	require.NoError(t, repo.Save(ctx, o))
	// Saving without a status change records nothing.
	require.NoError(t, repo.Save(ctx, o))

	var failed []events.Event
	n, err := repo.Claim(ctx, 10, func(_ context.Context, batch []events.Event) error {
		failed = batch
		return errors.New("broker down")
	})
	require.Error(t, err)
	assert.Zero(t, n)
	require.Len(t, failed, 2)

	var got []events.Event
	n, err = repo.Claim(ctx, 1, func(_ context.Context, batch []events.Event) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.Claim(ctx, 10, func(_ context.Context, batch []events.Event) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, got, 2)
	assert.Equal(t, events.KindOrderPlaced, got[0].Kind)
	assert.Equal(t, events.KindOrderStatusChanged, got[1].Kind)
	assert.Equal(t, o.ID, got[1].OrderID)

	n, err = repo.Claim(ctx, 10, func(context.Context, []events.Event) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddressRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAddressRepository()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &address.Address{UserID: 1, FullName: "A", IsDefault: true, CreatedAt: now}
	require.NoError(t, repo.Create(ctx, first))
	second := &address.Address{UserID: 1, FullName: "B", IsDefault: true, CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, &address.Address{UserID: 2, FullName: "C", CreatedAt: now}))

	list, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	// Update keeps the owner and creation time.
	moved := &address.Address{ID: first.ID, UserID: 2, FullName: "A2"}
	require.NoError(t, repo.Update(ctx, moved))
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, "A2", got.FullName)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, address.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), address.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &address.Address{ID: 99}), address.ErrNotFound)

	none, err := repo.ListByUser(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}
