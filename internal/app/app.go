package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/orderdesk/internal/domain/address"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/user"
	"github.com/xenking/orderdesk/internal/events"
	"github.com/xenking/orderdesk/internal/handler"
	"github.com/xenking/orderdesk/internal/idempotency"
	"github.com/xenking/orderdesk/pkg/health"
	"github.com/xenking/orderdesk/pkg/httpmiddleware"
)

const serviceName = "orderdesk"

// App is the assembled service: storage, domain services, the HTTP stack
// and the outbox relay.
type App struct {
	cfg     *Config
	health  *health.Health
	handler http.Handler
	relay   *events.Relay
	closers []func()
}

// New opens storage, bootstraps the admin account and builds the HTTP
// handler. Close releases what New acquired.
func New(ctx context.Context, cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (*App, error) {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, closers: []func(){st.close}}

	users := user.NewService(st.users, cfg.BcryptCost)
	if cfg.Admin.Email != "" {
		admin, err := users.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "ensure admin")
		}
		zctx.From(ctx).Info("Admin account ready", zap.Int64("user_id", admin.ID))
	}

	addresses := address.NewService(st.addresses)
	orders := order.NewService(st.users, st.products, st.orders,
		order.WithAddresses(st.addresses),
		order.WithTelemetry(tp, mp),
	)
	guard := idempotency.New(cfg.Idempotency.Size, cfg.Idempotency.TTL)

	a.health = health.New()
	if st.pinger != nil {
		a.health.Register(health.Check{
			Name:    "postgres",
			Probe:   health.Readiness,
			Timeout: 5 * time.Second,
			Func:    health.PingCheck(st.pinger),
		})
	}
	a.health.Register(health.Check{
		Name:    "goroutines",
		Probe:   health.Liveness,
		Timeout: time.Second,
		Func:    health.GoroutineLimit(10000),
	})

	a.relay = events.NewRelay(st.outbox, a.publisher(ctx), cfg.Kafka.RelayInterval, cfg.Kafka.BatchSize)

	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(users, st.products, orders, addresses, guard)

	mux := http.NewServeMux()
	mux.Handle("/livez", a.health.Handler(health.Liveness))
	mux.Handle("/readyz", a.health.Handler(health.Readiness))
	mux.Handle("/api/", h.Router())

	mws := []httpmiddleware.Middleware{
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(serviceName, tp, mp),
		httpmiddleware.LogRequests(),
	}
	if cfg.RateLimit.Max > 0 {
		proxies, err := httpmiddleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "rate limit")
		}
		mws = append(mws, httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:            cfg.RateLimit.Max,
			Window:         cfg.RateLimit.Window,
			TrustedProxies: proxies,
		}))
	}
	a.handler = httpmiddleware.Wrap(mux, mws...)
	a.health.SetReady(true)

	return a, nil
}

func (a *App) publisher(ctx context.Context) events.Publisher {
	brokers := events.ParseBrokers(a.cfg.Kafka.Brokers)
	if len(brokers) == 0 {
		zctx.From(ctx).Info("No Kafka brokers configured, order events are logged")
		return events.LogPublisher{}
	}
	w := events.NewKafkaWriter(brokers, a.cfg.Kafka.Topic)
	a.closers = append(a.closers, func() {
		if err := w.Close(); err != nil {
			zctx.From(ctx).Warn("Close kafka writer", zap.Error(err))
		}
	})
	zctx.From(ctx).Info("Publishing order events to Kafka",
		zap.Strings("brokers", brokers),
		zap.String("topic", a.cfg.Kafka.Topic),
	)
	return events.NewKafkaPublisher(w)
}

// Handler returns the root HTTP handler with health probes and the API.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases storage and publisher resources in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Run creates all dependencies, starts the HTTP server and the outbox relay,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	a, err := New(ctx, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           a.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	a.health.Start(gctx, 10*time.Second)
	defer a.health.Stop()

	g.Go(func() error {
		return a.relay.Run(gctx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		a.health.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		// Publish whatever the last requests wrote to the outbox.
		if n, err := a.relay.Flush(shutdownCtx); err != nil {
			lg.Warn("Final outbox flush failed", zap.Error(err), zap.Int("sent", n))
		}
		return nil
	})

	return g.Wait()
}
