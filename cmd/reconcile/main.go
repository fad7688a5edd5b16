// File: cmd/reconcile/main.go
//
// reconcile re-verifies transactions that stayed pending past a cutoff
// against their gateway. It is run by an operator (or a cron entry); rows
// the gateway still reports as pending are left untouched.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"health-insurance-portal/internal/config"
	payAdapters "health-insurance-portal/internal/infra/adapters/payment"
	pg "health-insurance-portal/internal/infra/db/postgres"
	"health-insurance-portal/internal/infra/logging"
	red "health-insurance-portal/internal/infra/redis"
	"health-insurance-portal/internal/infra/sched"
	"health-insurance-portal/internal/usecase"
)

func main() {
	olderThan := flag.Duration("older-than", 0, "only re-verify rows pending longer than this (default reconcile.older_than)")
	batch := flag.Int("batch", 0, "max rows per pass (default reconcile.batch_size)")
	workers := flag.Int("workers", 0, "concurrent gateway lookups (default reconcile.workers)")
	every := flag.Duration("every", 0, "repeat at this interval instead of running once")

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Global.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if *olderThan <= 0 {
		*olderThan = cfg.Reconcile.OlderThan
	}
	if *batch <= 0 {
		*batch = cfg.Reconcile.BatchSize
	}
	if *workers <= 0 {
		*workers = cfg.Reconcile.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.ConnectPostgres(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	txRepo := pg.NewTransactionRepo(pool)
	quoteRepo := pg.NewQuoteRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	opts := usecase.ReconcileOptions{ReturnURL: cfg.Payment.VerifyURL, CancelURL: cfg.Payment.CancelURL, LockTTL: cfg.Payment.LockTTL}
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		opts.Locker = red.NewLocker(redisClient)
	}

	gateways, err := payAdapters.NewRegistryFromConfig(cfg.Payment, cfg.Runtime.Dev, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateways")
	}

	ledgerUC := usecase.NewLedgerUseCase(txRepo, logger)
	activatorUC := usecase.NewActivatorUseCase(quoteRepo, subRepo, logger)
	reconcileUC := usecase.NewReconcileUseCase(ledgerUC, activatorUC, quoteRepo, subRepo, gateways, pg.NewTxManager(pool), opts, logger)

	sweeper := sched.NewPendingSweeper(ledgerUC, reconcileUC, *olderThan, *batch, *workers, logger)
	if *every > 0 {
		logger.Info().Dur("every", *every).Dur("older_than", *olderThan).Msg("pending sweeper running")
		sweeper.Start(ctx, *every)
		return
	}

	rep, err := sweeper.RunOnce(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("pending sweep")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
}
