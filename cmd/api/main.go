package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/partsbay/partsbay-backend/api/routes"
	"github.com/partsbay/partsbay-backend/internal/audit"
	"github.com/partsbay/partsbay-backend/internal/auth"
	"github.com/partsbay/partsbay-backend/internal/commission"
	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/internal/orders"
	"github.com/partsbay/partsbay-backend/internal/parts"
	"github.com/partsbay/partsbay-backend/internal/payouts"
	"github.com/partsbay/partsbay-backend/internal/settlement"
	"github.com/partsbay/partsbay-backend/internal/users"
	"github.com/partsbay/partsbay-backend/internal/vendors"
	gatewaywebhook "github.com/partsbay/partsbay-backend/internal/webhooks/gateway"
	"github.com/partsbay/partsbay-backend/pkg/auth/session"
	"github.com/partsbay/partsbay-backend/pkg/config"
	"github.com/partsbay/partsbay-backend/pkg/db"
	"github.com/partsbay/partsbay-backend/pkg/env"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/metrics"
	"github.com/partsbay/partsbay-backend/pkg/migrate"
	"github.com/partsbay/partsbay-backend/pkg/outbox"
	"github.com/partsbay/partsbay-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	deps, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	id := env.Get("DYNO", "local")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			deps.sessions,
			deps.auth,
			deps.orders,
			deps.parts,
			deps.inventory,
			deps.commission,
			deps.settlement,
			deps.payouts,
			deps.gateway,
			deps.guard,
			metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shutting down gracefully")
}

type apiServices struct {
	sessions   *session.Manager
	auth       auth.Service
	orders     orders.Service
	parts      parts.Service
	inventory  inventory.Service
	commission commission.Service
	settlement settlement.Service
	payouts    payouts.Service
	gateway    *gatewaywebhook.Service
	guard      *gatewaywebhook.IdempotencyGuard
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*apiServices, error) {
	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	auditSvc, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}

	partsSvc, err := parts.NewService(parts.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("parts service: %w", err)
	}

	vendorsSvc, err := vendors.NewService(vendors.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("vendors service: %w", err)
	}

	inventorySvc, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}

	commissionSvc, err := commission.NewService(commission.NewRepository(dbClient.DB()), dbClient, auditSvc, logg)
	if err != nil {
		return nil, fmt.Errorf("commission service: %w", err)
	}

	settlementSvc, err := settlement.NewService(settlement.NewRepository(dbClient.DB()), dbClient, outboxSvc, auditSvc, inventorySvc, logg)
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	payoutsSvc, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), dbClient, outboxSvc, auditSvc, logg)
	if err != nil {
		return nil, fmt.Errorf("payouts service: %w", err)
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		partsSvc,
		vendorsSvc,
		inventorySvc,
		commissionSvc,
		settlementSvc,
		outboxSvc,
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	gatewaySvc, err := gatewaywebhook.NewService(settlementSvc)
	if err != nil {
		return nil, fmt.Errorf("gateway webhook service: %w", err)
	}

	guard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Gateway.WebhookIdempotencyTTL, "gateway-webhook")
	if err != nil {
		return nil, fmt.Errorf("gateway webhook guard: %w", err)
	}

	return &apiServices{
		sessions:   sessionManager,
		auth:       authService,
		orders:     ordersSvc,
		parts:      partsSvc,
		inventory:  inventorySvc,
		commission: commissionSvc,
		settlement: settlementSvc,
		payouts:    payoutsSvc,
		gateway:    gatewaySvc,
		guard:      guard,
	}, nil
}
