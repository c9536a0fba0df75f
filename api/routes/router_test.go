package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/internal/auth"
	"github.com/partsbay/partsbay-backend/internal/commission"
	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/internal/orders"
	"github.com/partsbay/partsbay-backend/internal/payouts"
	"github.com/partsbay/partsbay-backend/internal/settlement"
	gatewaywebhook "github.com/partsbay/partsbay-backend/internal/webhooks/gateway"
	pkgAuth "github.com/partsbay/partsbay-backend/pkg/auth"
	"github.com/partsbay/partsbay-backend/pkg/auth/session"
	"github.com/partsbay/partsbay-backend/pkg/config"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// memoryStore stands in for the Redis client so middleware paths run for real.
type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.values[key] = v
	case []byte:
		m.values[key] = string(v)
	default:
		m.values[key] = fmt.Sprintf("%v", v)
	}
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryStore) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func (stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

type stubOrdersService struct {
	place func(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error)
	get   func(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func (s stubOrdersService) Place(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error) {
	if s.place != nil {
		return s.place(ctx, input)
	}
	panic("unimplemented")
}

func (s stubOrdersService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	panic("unimplemented")
}

type stubPartsService struct{}

// GetByID implements [parts.Service].
func (stubPartsService) GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	panic("unimplemented")
}

// GetByIDs implements [parts.Service].
func (stubPartsService) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Part, error) {
	panic("unimplemented")
}

// ListVendorParts implements [parts.Service].
func (stubPartsService) ListVendorParts(ctx context.Context, vendorID uuid.UUID) ([]models.Part, error) {
	panic("unimplemented")
}

type stubInventoryService struct {
	listStock func(ctx context.Context, vendorID uuid.UUID) ([]inventory.VendorStockRow, error)
}

// Decrement implements [inventory.Service].
func (stubInventoryService) Decrement(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) error {
	panic("unimplemented")
}

// Increment implements [inventory.Service].
func (stubInventoryService) Increment(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) error {
	panic("unimplemented")
}

// Restock implements [inventory.Service].
func (stubInventoryService) Restock(ctx context.Context, input inventory.RestockInput) (*models.InventoryItem, error) {
	panic("unimplemented")
}

// Adjust implements [inventory.Service].
func (stubInventoryService) Adjust(ctx context.Context, input inventory.AdjustInput) (*models.InventoryItem, error) {
	panic("unimplemented")
}

// GetItem implements [inventory.Service].
func (stubInventoryService) GetItem(ctx context.Context, partID uuid.UUID) (*models.InventoryItem, error) {
	panic("unimplemented")
}

// ListTransactions implements [inventory.Service].
func (stubInventoryService) ListTransactions(ctx context.Context, input inventory.ListTransactionsInput) (*inventory.TransactionPage, error) {
	panic("unimplemented")
}

func (s stubInventoryService) ListVendorStock(ctx context.Context, vendorID uuid.UUID) ([]inventory.VendorStockRow, error) {
	if s.listStock != nil {
		return s.listStock(ctx, vendorID)
	}
	return []inventory.VendorStockRow{}, nil
}

// ListBelowReorderPoint implements [inventory.Service].
func (stubInventoryService) ListBelowReorderPoint(ctx context.Context) ([]inventory.LowStockRow, error) {
	panic("unimplemented")
}

type stubCommissionService struct{}

// Resolve implements [commission.Service].
func (stubCommissionService) Resolve(ctx context.Context, input commission.ResolveInput) (*commission.ResolvedRate, error) {
	panic("unimplemented")
}

// CreateRule implements [commission.Service].
func (stubCommissionService) CreateRule(ctx context.Context, input commission.CreateRuleInput) (*models.CommissionRule, error) {
	panic("unimplemented")
}

// ListRules implements [commission.Service].
func (stubCommissionService) ListRules(ctx context.Context, input commission.ListRulesInput) ([]models.CommissionRule, error) {
	return []models.CommissionRule{}, nil
}

// DeactivateRule implements [commission.Service].
func (stubCommissionService) DeactivateRule(ctx context.Context, input commission.DeactivateRuleInput) (*models.CommissionRule, error) {
	panic("unimplemented")
}

type stubSettlementService struct{}

// RecordSplit implements [settlement.Service].
func (stubSettlementService) RecordSplit(ctx context.Context, tx *gorm.DB, input settlement.RecordSplitInput) ([]models.Payment, error) {
	panic("unimplemented")
}

// ApplyGatewayEvent implements [settlement.Service].
func (stubSettlementService) ApplyGatewayEvent(ctx context.Context, input settlement.GatewayEventInput) (*models.Payment, error) {
	panic("unimplemented")
}

// CancelPayment implements [settlement.Service].
func (stubSettlementService) CancelPayment(ctx context.Context, input settlement.CancelPaymentInput) (*models.Payment, error) {
	panic("unimplemented")
}

// RefundPayment implements [settlement.Service].
func (stubSettlementService) RefundPayment(ctx context.Context, input settlement.RefundPaymentInput) (*models.Payment, error) {
	panic("unimplemented")
}

// GetPayment implements [settlement.Service].
func (stubSettlementService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	panic("unimplemented")
}

// ListOrderPayments implements [settlement.Service].
func (stubSettlementService) ListOrderPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	panic("unimplemented")
}

// ListVendorPayments implements [settlement.Service].
func (stubSettlementService) ListVendorPayments(ctx context.Context, input settlement.ListVendorPaymentsInput) (*settlement.PaymentPage, error) {
	panic("unimplemented")
}

// SweepStalePending implements [settlement.Service].
func (stubSettlementService) SweepStalePending(ctx context.Context, olderThan time.Time) (int, error) {
	panic("unimplemented")
}

type stubPayoutsService struct {
	list func(ctx context.Context, input payouts.ListPayoutsInput) (*payouts.PayoutPage, error)
}

// Aggregate implements [payouts.Service].
func (stubPayoutsService) Aggregate(ctx context.Context, input payouts.AggregateInput) (*models.VendorPayout, error) {
	panic("unimplemented")
}

// AggregateAllVendors implements [payouts.Service].
func (stubPayoutsService) AggregateAllVendors(ctx context.Context, periodStart, periodEnd time.Time) (payouts.AggregateSummary, error) {
	panic("unimplemented")
}

// Approve implements [payouts.Service].
func (stubPayoutsService) Approve(ctx context.Context, input payouts.OperatorActionInput) (*models.VendorPayout, error) {
	panic("unimplemented")
}

// Hold implements [payouts.Service].
func (stubPayoutsService) Hold(ctx context.Context, input payouts.OperatorActionInput) (*models.VendorPayout, error) {
	panic("unimplemented")
}

// BeginProcessing implements [payouts.Service].
func (stubPayoutsService) BeginProcessing(ctx context.Context, input payouts.OperatorActionInput) (*models.VendorPayout, error) {
	panic("unimplemented")
}

// MarkPaid implements [payouts.Service].
func (stubPayoutsService) MarkPaid(ctx context.Context, input payouts.MarkPaidInput) (*models.VendorPayout, error) {
	panic("unimplemented")
}

// Reject implements [payouts.Service].
func (stubPayoutsService) Reject(ctx context.Context, input payouts.RejectInput) (*models.VendorPayout, error) {
	panic("unimplemented")
}

// SetAdjustment implements [payouts.Service].
func (stubPayoutsService) SetAdjustment(ctx context.Context, input payouts.AdjustmentInput) (*models.VendorPayout, error) {
	panic("unimplemented")
}

// GetPayout implements [payouts.Service].
func (stubPayoutsService) GetPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	panic("unimplemented")
}

func (s stubPayoutsService) ListPayouts(ctx context.Context, input payouts.ListPayoutsInput) (*payouts.PayoutPage, error) {
	if s.list != nil {
		return s.list(ctx, input)
	}
	return &payouts.PayoutPage{}, nil
}

type stubGatewayService struct {
	handle func(ctx context.Context, event *gatewaywebhook.Event, status enums.GatewayEventStatus) (*models.Payment, error)
}

func (s stubGatewayService) HandleEvent(ctx context.Context, event *gatewaywebhook.Event, status enums.GatewayEventStatus) (*models.Payment, error) {
	if s.handle != nil {
		return s.handle(ctx, event, status)
	}
	panic("unimplemented")
}

type routerStubs struct {
	store     *memoryStore
	auth      stubAuthService
	orders    stubOrdersService
	inventory stubInventoryService
	payouts   stubPayoutsService
	gateway   stubGatewayService
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:     time.Minute,
			LoginEmailLimit: 10,
			LoginIPLimit:    2,
			WebhookWindow:   time.Minute,
			WebhookIPLimit:  100,
		},
		Gateway: config.GatewayConfig{WebhookSecret: "whsec_router"},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, stubs routerStubs) http.Handler {
	t.Helper()
	if stubs.store == nil {
		stubs.store = newMemoryStore()
	}
	guard, err := gatewaywebhook.NewIdempotencyGuard(stubs.store, time.Hour, "gateway")
	if err != nil {
		t.Fatalf("build guard: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubs.store,
		stubSessions{},
		stubs.auth,
		stubs.orders,
		stubPartsService{},
		stubs.inventory,
		stubCommissionService{},
		stubSettlementService{},
		stubs.payouts,
		stubs.gateway,
		guard,
		metrics.NewWebhookMetrics(prometheus.NewRegistry()),
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		VendorID: vendorID,
		Role:     role,
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, testConfig(), routerStubs{})

	live := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, live)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}

	ready := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, ready)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig(), routerStubs{})
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestVendorGroupRequiresVendorRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, routerStubs{})

	buyer := httptest.NewRequest(http.MethodGet, "/api/vendor/inventory", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer got %d", resp.Code)
	}

	vendorID := uuid.New()
	vendor := httptest.NewRequest(http.MethodGet, "/api/vendor/inventory", nil)
	vendor.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleVendor, &vendorID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, vendor)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for vendor got %d", resp.Code)
	}
}

func TestVendorGroupRequiresVendorBinding(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, routerStubs{})

	// The token minter refuses vendor tokens without a binding, so forge one
	// directly. The middleware must still reject it.
	now := time.Now()
	claims := pkgAuth.AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.UserRoleVendor,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        session.NewAccessID(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/vendor/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendor token without vendor id got %d", resp.Code)
	}
}

func TestAdminGroupRequiresOperatorRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, routerStubs{})

	vendorID := uuid.New()
	vendor := httptest.NewRequest(http.MethodGet, "/api/admin/payouts", nil)
	vendor.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleVendor, &vendorID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, vendor)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendor got %d", resp.Code)
	}

	operator := httptest.NewRequest(http.MethodGet, "/api/admin/payouts", nil)
	operator.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleOperator, nil))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, operator)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for operator got %d", resp.Code)
	}
}

func TestOrderPlacementRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, routerStubs{})

	body := `{"items":[{"part_id":"` + uuid.NewString() + `","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}
}

func TestOrderPlacementReplaysIdempotentResponse(t *testing.T) {
	cfg := testConfig()
	calls := 0
	orderID := uuid.New()
	stubs := routerStubs{
		orders: stubOrdersService{
			place: func(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error) {
				calls++
				return &models.Order{
					ID:          orderID,
					OrderNumber: "ORD-20250801-000007",
					BuyerID:     &input.BuyerID,
				}, nil
			},
		},
	}
	router := newTestRouter(t, cfg, stubs)

	body := `{"items":[{"part_id":"` + uuid.NewString() + `","quantity":2}]}`
	token := buildToken(t, cfg, enums.UserRoleBuyer, nil)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "order-attempt-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first placement got %d", first.Code)
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected replayed body %q got %q", first.Body.String(), second.Body.String())
	}
	if calls != 1 {
		t.Fatalf("expected single service call got %d", calls)
	}
}

func TestGatewayWebhookSkipsAuthButChecksSignature(t *testing.T) {
	cfg := testConfig()
	called := false
	stubs := routerStubs{
		gateway: stubGatewayService{
			handle: func(ctx context.Context, event *gatewaywebhook.Event, status enums.GatewayEventStatus) (*models.Payment, error) {
				called = true
				return &models.Payment{ID: uuid.New()}, nil
			},
		},
	}
	router := newTestRouter(t, cfg, stubs)

	body := `{"transaction_id":"txn_route","status":"succeeded"}`
	unsigned := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, unsigned)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned webhook got %d", resp.Code)
	}
	if called {
		t.Fatal("expected handler not to run for unsigned webhook")
	}

	signed := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(body))
	signed.Header.Set(gatewaywebhook.SignatureHeader, gatewaywebhook.Sign(cfg.Gateway.WebhookSecret, []byte(body)))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, signed)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed webhook got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected handler to run for signed webhook")
	}
}

func TestLoginRateLimitKicksIn(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, routerStubs{})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		body := `{"email":"buyer@example.com","password":"wrong-password"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.7:4411"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		statuses = append(statuses, resp.Code)
	}

	if statuses[0] != http.StatusUnauthorized || statuses[1] != http.StatusUnauthorized {
		t.Fatalf("expected first attempts to reach the service, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third attempt rate limited, got %v", statuses)
	}
}
