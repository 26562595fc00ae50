// Package app wires the storefront together: config, storage, domain
// services, HTTP surface, and lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/emberroast/brewcart/internal/cartstore"
	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
	"github.com/emberroast/brewcart/internal/domain/coupon"
	"github.com/emberroast/brewcart/internal/domain/order"
	"github.com/emberroast/brewcart/internal/handler"
	"github.com/emberroast/brewcart/internal/repository"
	"github.com/emberroast/brewcart/internal/session"
	"github.com/emberroast/brewcart/pkg/health"
	"github.com/emberroast/brewcart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("cart_store", cfg.Cart.Store))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Cart snapshot backend.
	snapshots, err := newSnapshotStore(ctx, cfg, pool, lg)
	if err != nil {
		return errors.Wrap(err, "create cart snapshot store")
	}

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	processor := checkout.NewSimulatedProcessor(cfg.Payment.AuthorizeDelay, cfg.Payment.CaptureDelay)
	placer := order.NewCheckoutPlacer(orderRepo)

	sessions := session.NewManager(snapshots,
		func(sessionID string, c *cart.Store) *checkout.Wizard {
			return checkout.NewWizard(sessionID, c, couponValidator, processor, placer, lg)
		},
		cfg.Session.IdleTTL, lg)
	sessions.StartSweeper(ctx, cfg.Session.SweepInterval)

	// HTTP surface.
	h := handler.New(productRepo, orderRepo, sessions, apikeyRepo,
		[]byte(cfg.APIKeyPepper), cfg.ImageBaseURL)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	metrics, err := httpmiddleware.Metrics(m.MeterProvider().Meter("brewcart-api"))
	if err != nil {
		return errors.Wrap(err, "create metrics middleware")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			metrics,
			httpmiddleware.LogRequests(),
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

// newSnapshotStore builds the configured cart snapshot backend. The postgres
// backend also gets a daily reaper for snapshots older than 30 days.
func newSnapshotStore(ctx context.Context, cfg *Config, pool *pgxpool.Pool, lg *zap.Logger) (cart.SnapshotStore, error) {
	switch cfg.Cart.Store {
	case "memory":
		return cartstore.NewMemory(), nil
	case "file":
		return cartstore.NewFile(cfg.Cart.Dir, lg)
	case "postgres":
		store := repository.NewCartStore(pool, lg)
		go reapStaleCarts(ctx, store, lg)
		return store, nil
	default:
		return nil, errors.Errorf("unknown cart store %q", cfg.Cart.Store)
	}
}

func reapStaleCarts(ctx context.Context, store *repository.CartStore, lg *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteStale(ctx, time.Now().Add(-30*24*time.Hour))
			if err != nil {
				lg.Warn("stale cart cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("deleted stale cart snapshots", zap.Int64("count", n))
			}
		}
	}
}
