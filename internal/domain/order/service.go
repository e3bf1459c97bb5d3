package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/orderdesk/internal/domain/address"
	"github.com/xenking/orderdesk/internal/domain/product"
	"github.com/xenking/orderdesk/internal/domain/user"
)

const instrumentationName = "github.com/xenking/orderdesk/internal/domain/order"

// UserDirectory resolves account ids. It returns user.ErrNotFound for
// unknown ids.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Catalog resolves product ids to their current price. It returns
// product.ErrNotFound for unknown ids.
type Catalog interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
}

// AddressBook resolves saved address ids. It returns address.ErrNotFound
// for unknown ids.
type AddressBook interface {
	GetByID(ctx context.Context, id int64) (*address.Address, error)
}

// ItemRequest is one requested line of a placement.
type ItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// PlaceOrderRequest holds the input for placing an order. A non-zero
// AddressID selects one of the user's saved addresses, which replaces
// Shipping.
type PlaceOrderRequest struct {
	UserID    int64
	AddressID int64
	Shipping  ShippingSnapshot
	Items     []ItemRequest
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAddresses lets placements refer to saved addresses by id.
func WithAddresses(book AddressBook) Option {
	return func(s *Service) { s.addresses = book }
}

// WithTelemetry records spans and counters through the given providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
		s.meterProvider = mp
	}
}

// Service encapsulates order placement, the status lifecycle, and order
// queries.
type Service struct {
	users     UserDirectory
	catalog   Catalog
	orders    Repository
	addresses AddressBook
	now       func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	placed         metric.Int64Counter
	transitions    metric.Int64Counter
}

// NewService creates an order Service with the required collaborators.
func NewService(users UserDirectory, catalog Catalog, orders Repository, opts ...Option) *Service {
	s := &Service{
		users:          users,
		catalog:        catalog,
		orders:         orders,
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.placed, err = meter.Int64Counter("orderdesk.orders.placed",
		metric.WithDescription("Orders successfully placed."),
	); err != nil {
		otel.Handle(err)
	}
	if s.transitions, err = meter.Int64Counter("orderdesk.orders.transitions",
		metric.WithDescription("Order status transitions applied."),
	); err != nil {
		otel.Handle(err)
	}
	return s
}

// PlaceOrder validates the request, resolves the user and every product,
// snapshots current prices, and persists the aggregate with one Save. No
// write happens unless every lookup succeeds.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(
			attribute.Int64("orderdesk.user_id", req.UserID),
			attribute.Int("orderdesk.items", len(req.Items)),
		),
	)
	defer func() { endSpan(span, rerr) }()

	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, &NotFoundError{Entity: EntityUser, ID: req.UserID, Err: err}
		}
		return nil, &StorageError{Op: "get user", Err: err}
	}

	shipping := req.Shipping
	if req.AddressID != 0 {
		var err error
		if shipping, err = s.savedAddress(ctx, req.UserID, req.AddressID); err != nil {
			return nil, err
		}
	}

	// Every lookup completes before the single write below.
	items := make([]Item, len(req.Items))
	for i, it := range req.Items {
		p, err := s.catalog.GetByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &NotFoundError{Entity: EntityProduct, ID: it.ProductID, Err: err}
			}
			return nil, &StorageError{Op: "get product", Err: err}
		}
		if p.Price.IsNegative() {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("items[%d].productId", i),
				Reason: fmt.Sprintf("product %d has a negative price", it.ProductID),
			}
		}
		items[i] = Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
		}
	}

	now := s.timestamp()
	o := &Order{
		UserID:    req.UserID,
		Shipping:  shipping,
		Items:     items,
		Total:     SumItems(items),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, &StorageError{Op: "save order", Err: err}
	}

	s.placed.Add(ctx, 1)
	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.Int("items", len(o.Items)),
		zap.Stringer("total", o.Total),
	)
	return o, nil
}

// savedAddress copies the saved address id into a snapshot. Addresses of
// other users are reported as missing.
func (s *Service) savedAddress(ctx context.Context, userID, id int64) (ShippingSnapshot, error) {
	notFound := &NotFoundError{Entity: EntityAddress, ID: id, Err: address.ErrNotFound}
	if s.addresses == nil {
		return ShippingSnapshot{}, notFound
	}
	a, err := s.addresses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return ShippingSnapshot{}, notFound
		}
		return ShippingSnapshot{}, &StorageError{Op: "get address", Err: err}
	}
	if a.UserID != userID {
		return ShippingSnapshot{}, notFound
	}
	return ShippingSnapshot{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		Region:       a.Region,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}, nil
}

// UpdateStatus moves an order to the requested status, refreshing UpdatedAt.
// Unknown values and transitions the lifecycle forbids are rejected with an
// InvalidTransitionError; nothing but Status and UpdatedAt changes.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(
			attribute.Int64("orderdesk.order_id", id),
			attribute.String("orderdesk.status", status),
		),
	)
	defer func() { endSpan(span, rerr) }()

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, ok := ParseStatus(status)
	if !ok {
		return nil, &InvalidTransitionError{From: o.Status, To: status}
	}
	if !o.Status.CanTransition(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: string(next)}
	}

	prev := o.Status
	now := s.timestamp()
	if !now.After(o.UpdatedAt) {
		now = o.UpdatedAt.Add(time.Microsecond)
	}
	o.Status = next
	o.UpdatedAt = now

	// The store rechecks the transition against the status it holds, so a
	// concurrent update that got there first wins.
	if err := s.orders.Save(ctx, o); err != nil {
		var ite *InvalidTransitionError
		if errors.As(err, &ite) {
			return nil, ite
		}
		return nil, &StorageError{Op: "save order", Err: err}
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(prev)),
		attribute.String("to", string(next)),
	))
	zctx.From(ctx).Info("Order status changed",
		zap.Int64("order_id", o.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)
	return o, nil
}

// Get returns a single order by id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Entity: EntityOrder, ID: id, Err: err}
		}
		return nil, &StorageError{Op: "find order", Err: err}
	}
	return o, nil
}

// ListByUser returns every order placed by userID, oldest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "find orders by user", Err: err}
	}
	return orders, nil
}

// ListAll returns every order in the system, oldest first. Callers are
// responsible for restricting it to privileged users.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		return nil, &StorageError{Op: "find orders", Err: err}
	}
	return orders, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, it := range items {
		if it.Quantity < 1 {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: "must be greater than 0",
			}
		}
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
