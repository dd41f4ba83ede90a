package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/inventory-reservation/internal/adapter/events"
	"github.com/rl1809/inventory-reservation/internal/adapter/handler"
	"github.com/rl1809/inventory-reservation/internal/adapter/lock"
	"github.com/rl1809/inventory-reservation/internal/adapter/payment"
	"github.com/rl1809/inventory-reservation/internal/adapter/storage"
	"github.com/rl1809/inventory-reservation/internal/config"
	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/core/service"
	"github.com/rl1809/inventory-reservation/internal/observability"
	"github.com/rl1809/inventory-reservation/internal/port"
)

// DefaultSeed is loaded into an empty store at startup.
func DefaultSeed() []domain.StockRecord {
	return []domain.StockRecord{
		{ProductID: "P001", LocationID: "S001", Quantity: 10},
		{ProductID: "P002", LocationID: "S001", Quantity: 50},
		{ProductID: "P001", LocationID: "S002", Quantity: 5},
	}
}

// App is the fully wired service.
type App struct {
	cfg      config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics

	Ledger       *service.Ledger
	Query        *service.QueryService
	Reservations *service.ReservationService
	Adjustments  *service.AdjustmentService
	Payments     *payment.GuardedConfirmer
	Health       *handler.HealthReporter

	httpServer *http.Server
	grpcServer *grpc.Server
	closers    []func() error
}

// New builds every adapter named by cfg. gateway overrides the simulated
// payment provider when non-nil.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, gateway port.PaymentGateway) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := &App{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  observability.NewMetrics(registry),
		Health:   handler.NewHealthReporter(),
	}
	ready := false
	defer func() {
		if !ready {
			app.Close()
		}
	}()

	store, err := app.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	locks, err := app.buildLocks()
	if err != nil {
		return nil, err
	}
	opts, err := app.buildOptions(ctx)
	if err != nil {
		return nil, err
	}

	if gateway == nil {
		gateway = payment.NewSimulatedGateway(cfg.Payment.FailureRate, cfg.Payment.Seed, cfg.Payment.Latency)
	}
	app.Payments = payment.NewGuardedConfirmer(gateway, cfg.Payment.Retry, cfg.Payment.Breaker, log, app.metrics)
	app.Payments.Guard().OnStateChange(app.Health.OnPaymentState)

	app.Ledger = service.NewLedger(store)
	app.Query = service.NewQueryService(app.Ledger, opts...)
	app.Reservations = service.NewReservationService(app.Ledger, locks, app.Payments, opts...)
	app.Adjustments = service.NewAdjustmentService(app.Ledger, locks, opts...)

	if cfg.Seed.Enabled {
		n, err := app.Ledger.Seed(ctx, DefaultSeed())
		if err != nil {
			return nil, fmt.Errorf("seed stock: %w", err)
		}
		log.Info("stock_seeded", zap.Int("records", n))
	}

	app.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	app.grpcServer = grpc.NewServer()
	app.Health.Register(app.grpcServer)

	ready = true
	return app, nil
}

func (a *App) buildStore(ctx context.Context) (port.StockStore, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(ctx, a.cfg.Store.MySQLDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		store := storage.NewMySQLStockStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		a.log.Info("store_ready", zap.String("driver", config.DriverMySQL))
		return store, nil
	default:
		return storage.NewMemoryStockStore(), nil
	}
}

func (a *App) buildLocks() (port.LockCoordinator, error) {
	switch a.cfg.Lock.Driver {
	case config.DriverZooKeeper:
		zkCfg := a.cfg.Lock.ZooKeeper
		conn, _, err := zk.Connect(zkCfg.Servers, zkCfg.SessionTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect zookeeper: %w", err)
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })

		coord, err := lock.NewZooKeeperCoordinator(conn, zkCfg.Root, zkCfg.WaitTimeout, a.log, a.metrics)
		if err != nil {
			return nil, err
		}
		a.log.Info("lock_ready", zap.String("driver", config.DriverZooKeeper), zap.Strings("servers", zkCfg.Servers))
		return coord, nil
	default:
		return lock.NewKeyedMutex(a.metrics), nil
	}
}

func (a *App) buildOptions(ctx context.Context) ([]service.Option, error) {
	opts := []service.Option{
		service.WithLogger(a.log),
		service.WithMetrics(a.metrics),
	}

	switch a.cfg.Idempotency.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Idempotency.RedisAddr,
			PoolSize: 100,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		opts = append(opts, service.WithIdempotency(storage.NewRedisIdempotencyStore(rdb, a.cfg.Idempotency.TTL)))
	case config.DriverMemory:
		opts = append(opts, service.WithIdempotency(storage.NewMemoryIdempotencyStore()))
	}

	switch a.cfg.Events.Driver {
	case config.DriverKafka:
		pub := events.NewKafkaPublisher(events.NewKafkaWriter(a.cfg.Events.Brokers, a.cfg.Events.Topic))
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, service.WithEvents(pub))
	default:
		opts = append(opts, service.WithEvents(events.NopPublisher{}))
	}
	return opts, nil
}

// Handler returns the HTTP surface including /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	handler.NewHTTPHandler(a.Query, a.Reservations, a.Adjustments, a.Payments.Guard(), a.log, a.metrics).Register(mux)
	return mux
}

// Run serves HTTP and gRPC until ctx is done or either server fails, then
// shuts both down.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("http_server_start", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.log.Info("grpc_server_start", zap.String("addr", lis.Addr().String()))
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Health.Shutdown()

		timeout := a.cfg.Service.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error("http_server_shutdown_error", zap.Error(err))
		} else {
			a.log.Info("http_server_stopped")
		}
		a.grpcServer.GracefulStop()
		a.log.Info("grpc_server_stopped")
		return nil
	})

	return g.Wait()
}

// Close releases external connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
