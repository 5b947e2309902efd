package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bakery-storefront/db"
	"github.com/xenking/bakery-storefront/internal/confirmation"
	"github.com/xenking/bakery-storefront/internal/domain/order"
	"github.com/xenking/bakery-storefront/internal/domain/product"
	"github.com/xenking/bakery-storefront/internal/handler"
	"github.com/xenking/bakery-storefront/internal/mail"
	"github.com/xenking/bakery-storefront/internal/storage/memory"
	"github.com/xenking/bakery-storefront/internal/storage/postgres"
	"github.com/xenking/bakery-storefront/internal/storage/rediscache"
	"github.com/xenking/bakery-storefront/pkg/health"
	"github.com/xenking/bakery-storefront/pkg/httpmiddleware"
)

const serviceName = "bakery-api"

// stores is the storage backend selected by configuration.
type stores struct {
	products product.Repository
	orders   order.Store
	close    func()
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.close()

	repo := order.NewRepository(st.orders)
	n, err := repo.Warm(ctx)
	if err != nil {
		return errors.Wrap(err, "warm order numbers")
	}
	lg.Info("Order numbers loaded", zap.Int("count", n))

	dispatcher, err := newDispatcher(lg, m.MeterProvider(), cfg.Mail)
	if err != nil {
		return err
	}
	orderService, err := order.NewService(repo, dispatcher,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		st.products,
		orderService,
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, zctx.From(ctx), cfg, h, healthSvc, m.TracerProvider(), m.MeterProvider()),
	}

	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			lg.Warn("Pending confirmations abandoned", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

// newRouter mounts health probes and the API behind the middleware chain.
// Route aware middlewares run inside chi so the matched pattern is known.
func newRouter(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	h *handler.Handler,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Instrument(serviceName, tp, mp),
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(r)

	return httpmiddleware.Wrap(r,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			Headers:          []string{"Content-Type", httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
	)
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, healthSvc *health.Health) (*stores, error) {
	st := &stores{close: func() {}}

	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

		products := postgres.NewProductRepository(pool)
		if cfg.Storage.SeedCatalog {
			if err := seedEmptyCatalog(ctx, lg, products); err != nil {
				pool.Close()
				return nil, err
			}
		}
		st.products = products
		st.orders = postgres.NewOrderStore(pool)
		st.close = pool.Close
	default:
		catalog, err := product.ParseCatalog(db.Products)
		if err != nil {
			return nil, errors.Wrap(err, "parse bundled catalog")
		}
		st.products = memory.NewProductRepository(catalog)
		st.orders = memory.NewOrderStore()
		lg.Warn("Using in-memory storage, orders are lost on restart")
	}

	if cfg.RedisURL == "" {
		return st, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		st.close()
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		st.close()
		return nil, errors.Wrap(err, "ping redis")
	}
	healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	st.orders = rediscache.New(st.orders, client, cfg.Storage.CacheTTL)
	closeStore := st.close
	st.close = func() {
		_ = client.Close()
		closeStore()
	}
	return st, nil
}

// seedEmptyCatalog loads the bundled catalog when the products table is
// empty. Existing rows are never overwritten at startup.
func seedEmptyCatalog(ctx context.Context, lg *zap.Logger, repo *postgres.ProductRepository) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	if len(existing) > 0 {
		return nil
	}
	catalog, err := product.ParseCatalog(db.Products)
	if err != nil {
		return errors.Wrap(err, "parse bundled catalog")
	}
	if err := repo.Upsert(ctx, catalog); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	lg.Info("Seeded empty catalog", zap.Int("products", len(catalog)))
	return nil
}

func newDispatcher(lg *zap.Logger, mp metric.MeterProvider, cfg MailConfig) (*confirmation.Dispatcher, error) {
	var mailer confirmation.Mailer
	if cfg.APIKey != "" {
		transport, err := mail.NewResend(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create resend mailer")
		}
		mailer = mail.WithBreaker(lg, transport, mail.BreakerConfig{
			ConsecutiveFailures: cfg.BreakerFailures,
			Cooldown:            cfg.BreakerCooldown,
		})
	}

	d, err := confirmation.NewDispatcher(lg.Named("confirmation"), mailer, confirmation.Options{
		Composer: confirmation.Composer{
			From:          cfg.From,
			BusinessEmail: cfg.BusinessEmail,
		},
		Timeout:       cfg.Timeout,
		MeterProvider: mp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create confirmation dispatcher")
	}
	return d, nil
}
