package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kassa-fin/kassa/internal/app"
	"github.com/kassa-fin/kassa/internal/balance"
	"github.com/kassa-fin/kassa/internal/carryforward"
	"github.com/kassa-fin/kassa/internal/ledger"
	"github.com/kassa-fin/kassa/internal/observability"
	"github.com/kassa-fin/kassa/internal/owners"
	"github.com/kassa-fin/kassa/internal/periods"
	"github.com/kassa-fin/kassa/internal/platform/cache"
	"github.com/kassa-fin/kassa/internal/platform/db"
	"github.com/kassa-fin/kassa/internal/shared"
	"github.com/kassa-fin/kassa/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	ownersRepo := owners.NewRepository(pool)
	ownersService := owners.NewService(ownersRepo)
	ownersHandler := owners.NewHandler(logger, ownersService)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo, auditLogger)
	periodsHandler := periods.NewHandler(logger, periodsService)

	balanceRepo := balance.NewRepository(pool)
	balanceCache := balance.NewCache(redisClient, cfg.BalanceCacheTTL)
	balanceService := balance.NewService(balanceRepo, balanceCache)
	balanceHandler := balance.NewHandler(logger, balanceService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, ownersService, balanceService)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	carryRepo := carryforward.NewRepository(pool)
	carryService := carryforward.NewService(carryRepo, balanceService, balanceService, auditLogger)
	carryHandler := carryforward.NewHandler(logger, carryService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("init job client", slog.Any("error", err))
	} else {
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		carryService.WithWarmups(jobClient)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		OwnersHandler:       ownersHandler,
		PeriodsHandler:      periodsHandler,
		LedgerHandler:       ledgerHandler,
		BalanceHandler:      balanceHandler,
		CarryForwardHandler: carryHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
