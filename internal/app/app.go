package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/cache"
	"github.com/xenking/shopdesk/internal/domain/analytics"
	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/product"
	"github.com/xenking/shopdesk/internal/handler"
	"github.com/xenking/shopdesk/internal/repository"
	"github.com/xenking/shopdesk/pkg/health"
	"github.com/xenking/shopdesk/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Stringer("timezone", cfg.Location()),
	)

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second), health.FailureThreshold(5))

	// Redis, when configured, backs the report cache and a rate limit shared
	// between replicas. Otherwise both live in process.
	var (
		reportCache cache.Cache
		limiter     httpmiddleware.Limiter
	)
	if cfg.Cache.RedisURL != "" {
		rdb, err := cache.NewRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		}()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", rdb))
		reportCache = rdb
		limiter = httpmiddleware.NewFixedWindow(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
		lg.Info("Using redis cache")
	} else {
		mem := cache.NewMemory()
		mem.StartSweeper(ctx, cfg.Cache.SweepInterval)
		reportCache = mem

		sw := httpmiddleware.NewSlidingWindow(cfg.RateLimit.Max, cfg.RateLimit.Window)
		sw.StartCleanup(ctx)
		limiter = sw
	}

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	// Domain services. Catalog and order writes invalidate cached reports.
	reports, err := analytics.NewCachedService(
		analytics.NewService(productRepo, orderRepo, cfg.Location(), m.TracerProvider()),
		reportCache,
		cfg.Cache.TTL,
		cfg.Location(),
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create report cache")
	}
	productService := product.NewService(productRepo, reports.OnChange)
	discountService := discount.NewService(discountRepo)
	orderService := order.NewService(productRepo, discountService, orderRepo, reports.OnChange)

	h := handler.NewHandler(
		handler.Config{Location: cfg.Location()},
		productService,
		discountService,
		orderService,
		reports,
	)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Register(router)
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(limiter, httpmiddleware.ClientIP),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("shopdesk-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
