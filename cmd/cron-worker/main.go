package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/partsbay/partsbay-backend/internal/audit"
	"github.com/partsbay/partsbay-backend/internal/cron"
	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/internal/payouts"
	"github.com/partsbay/partsbay-backend/internal/settlement"
	"github.com/partsbay/partsbay-backend/pkg/config"
	"github.com/partsbay/partsbay-backend/pkg/db"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/metrics"
	"github.com/partsbay/partsbay-backend/pkg/migrate"
	"github.com/partsbay/partsbay-backend/pkg/outbox"
	"github.com/partsbay/partsbay-backend/pkg/redis"
)

const lockKeyFormat = "pb:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	auditSvc, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}

	inventorySvc, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}

	settlementSvc, err := settlement.NewService(settlement.NewRepository(dbClient.DB()), dbClient, outboxSvc, auditSvc, inventorySvc, logg)
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	payoutsSvc, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), dbClient, outboxSvc, auditSvc, logg)
	if err != nil {
		return nil, fmt.Errorf("payouts service: %w", err)
	}

	payoutJob, err := cron.NewPayoutAggregationJob(cron.PayoutAggregationJobParams{
		Logger:     logg,
		Payouts:    payoutsSvc,
		PeriodDays: cfg.Payouts.PeriodDays,
	})
	if err != nil {
		return nil, fmt.Errorf("payout aggregation job: %w", err)
	}

	lowStockJob, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:      logg,
		DB:          dbClient,
		Inventory:   inventorySvc,
		Outbox:      outboxSvc,
		DedupWindow: cfg.Cron.LowStockDedup,
	})
	if err != nil {
		return nil, fmt.Errorf("low stock job: %w", err)
	}

	stalePaymentJob, err := cron.NewStalePaymentJob(cron.StalePaymentJobParams{
		Logger:     logg,
		Settlement: settlementSvc,
		MaxAge:     cfg.Cron.StalePaymentAge,
	})
	if err != nil {
		return nil, fmt.Errorf("stale payment job: %w", err)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return cron.NewRegistry(payoutJob, lowStockJob, stalePaymentJob, retentionJob), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
