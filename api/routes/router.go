package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/partsbay/partsbay-backend/api/controllers"
	webhookcontrollers "github.com/partsbay/partsbay-backend/api/controllers/webhooks"
	"github.com/partsbay/partsbay-backend/api/middleware"
	"github.com/partsbay/partsbay-backend/internal/auth"
	"github.com/partsbay/partsbay-backend/internal/commission"
	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/internal/orders"
	"github.com/partsbay/partsbay-backend/internal/parts"
	"github.com/partsbay/partsbay-backend/internal/payouts"
	"github.com/partsbay/partsbay-backend/internal/settlement"
	gatewaywebhook "github.com/partsbay/partsbay-backend/internal/webhooks/gateway"
	"github.com/partsbay/partsbay-backend/pkg/auth/session"
	"github.com/partsbay/partsbay-backend/pkg/config"
	"github.com/partsbay/partsbay-backend/pkg/db"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/metrics"
	pkgredis "github.com/partsbay/partsbay-backend/pkg/redis"
)

// cacheStore is the slice of the Redis client the router wires into
// middlewares and the readiness probe.
type cacheStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	Ping(context.Context) error
}

// NewRouter assembles the HTTP surface. Buyer, vendor and operator routes
// share the /api group behind JWT auth; webhooks and auth endpoints stay
// outside it and carry their own rate limits.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache cacheStore,
	sessions session.AccessSessionChecker,
	authService auth.Service,
	ordersService orders.Service,
	partsService parts.Service,
	inventoryService inventory.Service,
	commissionService commission.Service,
	settlementService settlement.Service,
	payoutsService payouts.Service,
	gatewayService webhookcontrollers.GatewayWebhookService,
	gatewayGuard *gatewaywebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	// The gateway retries bursts on 5xx; its limit is per IP only.
	webhookPolicy := middleware.NewAuthRateLimitPolicy(
		"gateway-webhook",
		cfg.AuthRateLimit.WebhookWindow,
		cfg.AuthRateLimit.WebhookIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cache))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(webhookPolicy, cache, logg)).
			Post("/gateway", webhookcontrollers.GatewayWebhook(gatewayService, cfg.Gateway, gatewayGuard, webhookMetrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, cache, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.Post("/orders", controllers.PlaceOrder(ordersService, logg))
		r.Get("/orders/{orderID}", controllers.GetOrder(ordersService, logg))

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleVendor), logg))
			r.Use(middleware.VendorContext(logg))
			r.Get("/payments", controllers.VendorPayments(settlementService, logg))
			r.Get("/payouts", controllers.VendorPayouts(payoutsService, logg))
			r.Get("/inventory", controllers.VendorInventory(inventoryService, logg))
			r.Post("/inventory/{partID}/restock", controllers.VendorRestock(inventoryService, partsService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleOperator), logg))

			r.Route("/commission-rules", func(r chi.Router) {
				r.Get("/", controllers.AdminListCommissionRules(commissionService, logg))
				r.Post("/", controllers.AdminCreateCommissionRule(commissionService, logg))
				r.Post("/{ruleID}/deactivate", controllers.AdminDeactivateCommissionRule(commissionService, logg))
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", controllers.AdminListPayouts(payoutsService, logg))
				r.Post("/aggregate", controllers.AdminAggregatePayout(payoutsService, logg))
				r.Post("/{payoutID}/approve", controllers.AdminApprovePayout(payoutsService, logg))
				r.Post("/{payoutID}/hold", controllers.AdminHoldPayout(payoutsService, logg))
				r.Post("/{payoutID}/process", controllers.AdminProcessPayout(payoutsService, logg))
				r.Post("/{payoutID}/mark-paid", controllers.AdminMarkPayoutPaid(payoutsService, logg))
				r.Post("/{payoutID}/reject", controllers.AdminRejectPayout(payoutsService, logg))
				r.Post("/{payoutID}/adjustment", controllers.AdminSetPayoutAdjustment(payoutsService, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/{paymentID}/cancel", controllers.AdminCancelPayment(settlementService, logg))
				r.Post("/{paymentID}/refund", controllers.AdminRefundPayment(settlementService, logg))
			})

			r.Get("/orders/{orderID}/payments", controllers.AdminGetOrderPayments(settlementService, logg))
		})
	})

	return r
}
