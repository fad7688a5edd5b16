// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/config"
	"health-insurance-portal/internal/domain/ports/repository"
	payAdapters "health-insurance-portal/internal/infra/adapters/payment"
	"health-insurance-portal/internal/infra/api"
	pg "health-insurance-portal/internal/infra/db/postgres"
	"health-insurance-portal/internal/infra/logging"
	"health-insurance-portal/internal/infra/metrics"
	red "health-insurance-portal/internal/infra/redis"
	"health-insurance-portal/internal/usecase"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Global.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(metrics.Version, metrics.Commit)

	// ---- Postgres ----
	pool, err := pg.ConnectPostgres(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	txRepo := pg.NewTransactionRepo(pool)
	quoteRepo := pg.NewQuoteRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	var pkgRepo repository.PackageRepository = pg.NewPackageRepo(pool)
	tm := pg.NewTxManager(pool)

	opts := usecase.ReconcileOptions{
		ReturnURL: cfg.Payment.VerifyURL,
		CancelURL: cfg.Payment.CancelURL,
		LockTTL:   cfg.Payment.LockTTL,
	}
	var checkoutLimiter api.Limiter

	// ---- Redis (optional) ----
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		pkgRepo = pg.NewPackageRepoCacheDecorator(pkgRepo, redisClient)
		opts.Locker = red.NewLocker(redisClient)
		checkoutLimiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set: package cache, reference locks and checkout limits disabled")
	}

	// ---- Gateways ----
	gateways, err := payAdapters.NewRegistryFromConfig(cfg.Payment, cfg.Runtime.Dev, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateways")
	}
	logger.Info().Interface("gateways", gateways.Names()).Msg("payment gateways ready")

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(txRepo, logger)
	activatorUC := usecase.NewActivatorUseCase(quoteRepo, subRepo, logger)
	reconcileUC := usecase.NewReconcileUseCase(ledgerUC, activatorUC, quoteRepo, subRepo, gateways, tm, opts, logger)
	quoteUC := usecase.NewQuoteUseCase(quoteRepo, cfg.Payment.DefaultCurrency, logger)
	subUC := usecase.NewSubscriptionUseCase(pkgRepo, subRepo, logger)
	pkgUC := usecase.NewPackageUseCase(pkgRepo, logger)

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Reconcile:       reconcileUC,
		Quotes:          quoteUC,
		Subscriptions:   subUC,
		Packages:        pkgUC,
		Transactions:    ledgerUC,
		Auth:            api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName, time.Hour),
		CheckoutLimiter: checkoutLimiter,
	}, cfg.HTTP, cfg.Payment, logger)
	httpServer := srv.HTTPServer()

	go observePool(ctx, pool, 15*time.Second, logger)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

// observePool exports pgxpool stats until ctx is cancelled.
func observePool(ctx context.Context, pool *pgxpool.Pool, every time.Duration, logger *zerolog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		metrics.ObservePool(pool)
		select {
		case <-ctx.Done():
			logger.Debug().Msg("pool observer stopped")
			return
		case <-t.C:
		}
	}
}
