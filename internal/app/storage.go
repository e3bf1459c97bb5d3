package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderdesk/db/seed"
	"github.com/xenking/orderdesk/internal/domain/address"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
	"github.com/xenking/orderdesk/internal/domain/user"
	"github.com/xenking/orderdesk/internal/events"
	"github.com/xenking/orderdesk/internal/storage/memory"
	"github.com/xenking/orderdesk/internal/storage/postgres"
	"github.com/xenking/orderdesk/pkg/health"
)

// stores is the repository set selected by Config.Storage.
type stores struct {
	users     user.Repository
	products  product.Repository
	orders    order.Repository
	addresses address.Repository
	outbox    events.Source
	// pinger is nil for the memory driver.
	pinger health.Pinger
	close  func()
}

func openStorage(ctx context.Context, cfg *Config) (*stores, error) {
	lg := zctx.From(ctx)

	switch cfg.Storage {
	case StorageMemory:
		catalog, err := seed.ReadProducts(cfg.ProductsFile)
		if err != nil {
			return nil, errors.Wrap(err, "load catalog")
		}
		orders := memory.NewOrderRepository()
		lg.Info("Using in-memory storage", zap.Int("products", len(catalog)))
		return &stores{
			users:     memory.NewUserRepository(),
			products:  memory.NewProductRepository(catalog...),
			orders:    orders,
			addresses: memory.NewAddressRepository(),
			outbox:    orders,
			close:     func() {},
		}, nil
	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &stores{
			users:     postgres.NewUserRepository(pool),
			products:  postgres.NewProductRepository(pool),
			orders:    postgres.NewOrderRepository(pool),
			addresses: postgres.NewAddressRepository(pool),
			outbox:    postgres.NewOutbox(pool),
			pinger:    pool,
			close:     pool.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Storage)
	}
}
