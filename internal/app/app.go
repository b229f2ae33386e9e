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
	"golang.org/x/sync/errgroup"

	"github.com/xenking/folio-checkout/internal/domain/checkout"
	"github.com/xenking/folio-checkout/internal/domain/discount"
	"github.com/xenking/folio-checkout/internal/handler"
	"github.com/xenking/folio-checkout/internal/storage/postgres"
	"github.com/xenking/folio-checkout/pkg/health"
	"github.com/xenking/folio-checkout/pkg/httpmiddleware"
)

// Run connects to Postgres, wires the services and serves HTTP until ctx is
// cancelled.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	if cfg.AdminAPIKey == "" {
		lg.Warn("Admin API key is not set, admin routes will reject every request")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	probes := health.New(lg.Named("health"))
	probes.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	probes.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	probes.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(time.Second))

	store := postgres.NewCheckoutStore(pool, postgres.CheckoutOptions{
		TxTimeout:  cfg.Checkout.TxTimeout,
		MaxRetries: cfg.Checkout.MaxRetries,
	})
	settler, err := checkout.NewService(store, m.TracerProvider(), m.MeterProvider(),
		checkout.WithSessionTTL(cfg.Checkout.SessionTTL),
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	api := handler.New(handler.Config{
		AdminAPIKey:     cfg.AdminAPIKey,
		CheckoutBaseURL: cfg.CheckoutBaseURL,
	}, discount.NewService(postgres.NewDiscountRepository(pool)), settler)

	router := chi.NewRouter()
	router.Get("/livez", probes.LiveEndpoint)
	router.Get("/readyz", probes.ReadyEndpoint)
	api.Mount(router)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middlewares(ctx, cfg, m, router),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// A settlement may use every retry before answering.
		WriteTimeout:   cfg.Checkout.TxTimeout*time.Duration(cfg.Checkout.MaxRetries) + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	probes.Start(ctx, 10*time.Second)
	defer probes.Stop()
	probes.SetReady(true)

	return serve(ctx, lg, server, probes, cfg.Graceful)
}

// middlewares builds the chain around the router, outermost first.
func middlewares(ctx context.Context, cfg *Config, m *app.Telemetry, next http.Handler) http.Handler {
	return httpmiddleware.Wrap(next,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.HeaderAPIKey, httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{httpmiddleware.HeaderRequestID, "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RouteContext(),
		httpmiddleware.Instrument("folio-api", m.TracerProvider(), m.MeterProvider()),
		httpmiddleware.LogRequests(),
	)
}

// serve runs srv until ctx is done, then flips readiness off, waits for load
// balancers to notice and drains in-flight requests.
func serve(ctx context.Context, lg *zap.Logger, srv *http.Server, probes *health.Health, g GracefulConfig) error {
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		lg.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		probes.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Draining", zap.Duration("delay", g.ReadinessDelay))
			time.Sleep(g.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.ShutdownTimeout)
		defer cancel()
		lg.Info("Shutting down server", zap.Duration("timeout", g.ShutdownTimeout))
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return group.Wait()
}
