package settlement

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/internal/audit"
	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/outbox"
	"github.com/partsbay/partsbay-backend/pkg/pagination"
)

type stubPaymentsRepo struct {
	payments       []*models.Payment
	items          []models.OrderItem
	stale          []models.Payment
	created        []models.Payment
	paymentUpdates map[string]any
	rollupCalled   bool
	rollupStatus   enums.OrderPaymentStatus
	rollupPaidAt   *time.Time
	updateErr      error
	listByVendor   func(ctx context.Context, params listPaymentsParams) ([]models.Payment, *pagination.Cursor, error)
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.created = append(s.created, *payment)
	return nil
}

func (s *stubPaymentsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.ID == id {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentsRepo) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.TransactionID == transactionID {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentsRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	for _, payment := range s.payments {
		if payment.OrderID == orderID {
			payments = append(payments, *payment)
		}
	}
	return payments, nil
}

func (s *stubPaymentsRepo) ListByVendor(ctx context.Context, params listPaymentsParams) ([]models.Payment, *pagination.Cursor, error) {
	if s.listByVendor != nil {
		return s.listByVendor(ctx, params)
	}
	return nil, nil, nil
}

func (s *stubPaymentsRepo) ListStalePending(ctx context.Context, olderThan time.Time) ([]models.Payment, error) {
	return s.stale, nil
}

func (s *stubPaymentsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.paymentUpdates = updates
	target, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for key, value := range updates {
		switch key {
		case "status":
			if v, ok := value.(enums.PaymentStatus); ok {
				target.Status = v
			}
		case "paid_at":
			if v, ok := value.(time.Time); ok {
				target.PaidAt = &v
			}
		case "failure_reason":
			if v, ok := value.(string); ok {
				target.FailureReason = &v
			}
		case "refund_amount":
			if v, ok := value.(decimal.Decimal); ok {
				target.RefundAmount = &v
			}
		case "net_amount":
			if v, ok := value.(decimal.Decimal); ok {
				target.NetAmount = v
			}
		}
	}
	return nil
}

func (s *stubPaymentsRepo) ListOrderItemsForVendor(ctx context.Context, orderID, vendorID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	for _, item := range s.items {
		if item.OrderID == orderID && item.VendorID == vendorID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *stubPaymentsRepo) UpdateOrderRollup(ctx context.Context, orderID uuid.UUID, status enums.OrderPaymentStatus, paidAt *time.Time) error {
	s.rollupCalled = true
	s.rollupStatus = status
	s.rollupPaidAt = paidAt
	return nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubAuditRecorder struct {
	records []audit.RecordInput
}

func (s *stubAuditRecorder) Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditEvent, error) {
	s.records = append(s.records, input)
	return &models.AuditEvent{}, nil
}

type stubStockRestorer struct {
	calls []inventory.MovementInput
	err   error
}

func (s *stubStockRestorer) Increment(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, input)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type serviceFixture struct {
	repo      *stubPaymentsRepo
	outbox    *stubOutboxPublisher
	audit     *stubAuditRecorder
	inventory *stubStockRestorer
	svc       Service
}

func newTestService(t *testing.T, repo *stubPaymentsRepo) *serviceFixture {
	t.Helper()
	fixture := &serviceFixture{
		repo:      repo,
		outbox:    &stubOutboxPublisher{},
		audit:     &stubAuditRecorder{},
		inventory: &stubStockRestorer{},
	}
	logg := logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard})
	svc, err := NewService(repo, stubTxRunner{}, fixture.outbox, fixture.audit, fixture.inventory, logg)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func pendingPayment(orderID, vendorID uuid.UUID, amount, commission int64) *models.Payment {
	a := decimal.NewFromInt(amount)
	c := decimal.NewFromInt(commission)
	return &models.Payment{
		ID:               uuid.New(),
		OrderID:          orderID,
		VendorID:         vendorID,
		Amount:           a,
		CommissionAmount: c,
		NetAmount:        a.Sub(c),
		TransactionID:    NewTransactionID(),
		Status:           enums.PaymentStatusPending,
	}
}

func TestRecordSplitCreatesPendingPayments(t *testing.T) {
	repo := &stubPaymentsRepo{}
	fixture := newTestService(t, repo)

	orderID := uuid.New()
	vendorA := uuid.New()
	vendorB := uuid.New()
	payments, err := fixture.svc.RecordSplit(context.Background(), nil, RecordSplitInput{
		OrderID: orderID,
		Shares: []VendorShare{
			{VendorID: vendorA, Amount: decimal.NewFromInt(100), CommissionAmount: decimal.NewFromInt(10)},
			{VendorID: vendorB, Amount: decimal.NewFromInt(50), CommissionAmount: decimal.Zero},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments got %d", len(payments))
	}
	if len(repo.created) != 2 {
		t.Fatalf("expected 2 created rows got %d", len(repo.created))
	}
	seen := map[string]bool{}
	for _, payment := range payments {
		if payment.OrderID != orderID {
			t.Fatalf("unexpected order id %s", payment.OrderID)
		}
		if payment.Status != enums.PaymentStatusPending {
			t.Fatalf("expected pending got %s", payment.Status)
		}
		if !strings.HasPrefix(payment.TransactionID, "txn_") {
			t.Fatalf("unexpected transaction id %q", payment.TransactionID)
		}
		if seen[payment.TransactionID] {
			t.Fatalf("duplicate transaction id %q", payment.TransactionID)
		}
		seen[payment.TransactionID] = true
		if !payment.NetAmount.Equal(payment.Amount.Sub(payment.CommissionAmount)) {
			t.Fatalf("net %s does not match amount %s - commission %s", payment.NetAmount, payment.Amount, payment.CommissionAmount)
		}
	}
	if !payments[0].NetAmount.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected net 90 got %s", payments[0].NetAmount)
	}
	if !payments[1].NetAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected net 50 got %s", payments[1].NetAmount)
	}
}

func TestRecordSplitValidation(t *testing.T) {
	tests := []struct {
		name  string
		input RecordSplitInput
	}{
		{
			name:  "missing order",
			input: RecordSplitInput{Shares: []VendorShare{{VendorID: uuid.New(), Amount: decimal.NewFromInt(10)}}},
		},
		{
			name:  "no shares",
			input: RecordSplitInput{OrderID: uuid.New()},
		},
		{
			name: "missing vendor",
			input: RecordSplitInput{OrderID: uuid.New(), Shares: []VendorShare{
				{Amount: decimal.NewFromInt(10)},
			}},
		},
		{
			name: "zero amount",
			input: RecordSplitInput{OrderID: uuid.New(), Shares: []VendorShare{
				{VendorID: uuid.New(), Amount: decimal.Zero},
			}},
		},
		{
			name: "negative commission",
			input: RecordSplitInput{OrderID: uuid.New(), Shares: []VendorShare{
				{VendorID: uuid.New(), Amount: decimal.NewFromInt(10), CommissionAmount: decimal.NewFromInt(-1)},
			}},
		},
		{
			name: "commission above amount",
			input: RecordSplitInput{OrderID: uuid.New(), Shares: []VendorShare{
				{VendorID: uuid.New(), Amount: decimal.NewFromInt(10), CommissionAmount: decimal.NewFromInt(11)},
			}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fixture := newTestService(t, &stubPaymentsRepo{})
			_, err := fixture.svc.RecordSplit(context.Background(), nil, tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error got %v", err)
			}
		})
	}
}

func TestApplyGatewayEventCompletesPayment(t *testing.T) {
	orderID := uuid.New()
	payment := pendingPayment(orderID, uuid.New(), 100, 10)
	payment.Status = enums.PaymentStatusProcessing
	repo := &stubPaymentsRepo{payments: []*models.Payment{payment}}
	fixture := newTestService(t, repo)

	got, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: payment.TransactionID,
		Status:        enums.GatewayEventSucceeded,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed got %s", got.Status)
	}
	if got.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
	if _, ok := repo.paymentUpdates["paid_at"]; !ok {
		t.Fatalf("expected paid_at in updates, got %+v", repo.paymentUpdates)
	}
	if !repo.rollupCalled || repo.rollupStatus != enums.OrderPaymentStatusCompleted {
		t.Fatalf("expected order rollup completed, got %s", repo.rollupStatus)
	}
	if repo.rollupPaidAt == nil {
		t.Fatal("expected rollup paid_at")
	}
	if len(fixture.inventory.calls) != 0 {
		t.Fatalf("unexpected stock movements %+v", fixture.inventory.calls)
	}

	if len(fixture.outbox.events) != 1 {
		t.Fatalf("expected 1 event got %d", len(fixture.outbox.events))
	}
	event := fixture.outbox.events[0]
	if event.EventType != enums.EventPaymentCompleted {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateID != payment.ID {
		t.Fatalf("unexpected aggregate id %s", event.AggregateID)
	}

	if len(fixture.audit.records) != 1 {
		t.Fatalf("expected 1 audit record got %d", len(fixture.audit.records))
	}
	record := fixture.audit.records[0]
	if record.Action != enums.AuditPaymentStatusChanged {
		t.Fatalf("unexpected audit action %s", record.Action)
	}
	var meta struct {
		From enums.PaymentStatus `json:"from"`
		To   enums.PaymentStatus `json:"to"`
	}
	if err := json.Unmarshal(record.Metadata, &meta); err != nil {
		t.Fatalf("decode audit metadata: %v", err)
	}
	if meta.From != enums.PaymentStatusProcessing || meta.To != enums.PaymentStatusCompleted {
		t.Fatalf("unexpected audit transition %s -> %s", meta.From, meta.To)
	}
}

func TestApplyGatewayEventRequiresProcessingBeforeCompletion(t *testing.T) {
	payment := pendingPayment(uuid.New(), uuid.New(), 100, 10)
	repo := &stubPaymentsRepo{payments: []*models.Payment{payment}}
	fixture := newTestService(t, repo)

	_, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: payment.TransactionID,
		Status:        enums.GatewayEventSucceeded,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for pending->completed got %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment should stay pending, got %s", payment.Status)
	}

	_, err = fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: payment.TransactionID,
		Status:        enums.GatewayEventProcessing,
	})
	if err != nil {
		t.Fatalf("processing transition: %v", err)
	}
	got, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: payment.TransactionID,
		Status:        enums.GatewayEventSucceeded,
	})
	if err != nil {
		t.Fatalf("completion after processing: %v", err)
	}
	if got.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed got %s", got.Status)
	}
}

func TestApplyGatewayEventReplayIgnored(t *testing.T) {
	orderID := uuid.New()
	payment := pendingPayment(orderID, uuid.New(), 100, 10)
	payment.Status = enums.PaymentStatusCompleted
	repo := &stubPaymentsRepo{payments: []*models.Payment{payment}}
	fixture := newTestService(t, repo)

	got, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: payment.TransactionID,
		Status:        enums.GatewayEventSucceeded,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed got %s", got.Status)
	}
	if repo.paymentUpdates != nil {
		t.Fatalf("unexpected payment update %+v", repo.paymentUpdates)
	}
	if repo.rollupCalled {
		t.Fatal("unexpected rollup on replay")
	}
	if len(fixture.outbox.events) != 0 {
		t.Fatalf("unexpected events %+v", fixture.outbox.events)
	}
	if len(fixture.audit.records) != 0 {
		t.Fatalf("unexpected audit records %+v", fixture.audit.records)
	}
}

func TestApplyGatewayEventRejectsTerminalTransition(t *testing.T) {
	orderID := uuid.New()
	payment := pendingPayment(orderID, uuid.New(), 100, 10)
	payment.Status = enums.PaymentStatusFailed
	repo := &stubPaymentsRepo{payments: []*models.Payment{payment}}
	fixture := newTestService(t, repo)

	_, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: payment.TransactionID,
		Status:        enums.GatewayEventSucceeded,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if repo.paymentUpdates != nil {
		t.Fatalf("unexpected payment update %+v", repo.paymentUpdates)
	}
	if len(fixture.audit.records) != 1 {
		t.Fatalf("expected denied transition audit got %d records", len(fixture.audit.records))
	}
	if fixture.audit.records[0].Action != enums.AuditPaymentTransitionDenied {
		t.Fatalf("unexpected audit action %s", fixture.audit.records[0].Action)
	}
	if len(fixture.outbox.events) != 0 {
		t.Fatalf("unexpected events %+v", fixture.outbox.events)
	}
}

func TestApplyGatewayEventFailureRestoresStock(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	payment := pendingPayment(orderID, vendorID, 100, 10)
	payment.Status = enums.PaymentStatusProcessing
	partA := uuid.New()
	partB := uuid.New()
	repo := &stubPaymentsRepo{
		payments: []*models.Payment{payment},
		items: []models.OrderItem{
			{ID: uuid.New(), OrderID: orderID, PartID: partA, VendorID: vendorID, Quantity: 2},
			{ID: uuid.New(), OrderID: orderID, PartID: partB, VendorID: vendorID, Quantity: 1},
			{ID: uuid.New(), OrderID: orderID, PartID: uuid.New(), VendorID: uuid.New(), Quantity: 7},
		},
	}
	fixture := newTestService(t, repo)

	reason := "card declined"
	got, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: payment.TransactionID,
		Status:        enums.GatewayEventFailed,
		FailureReason: &reason,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed got %s", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != reason {
		t.Fatalf("expected failure reason %q got %v", reason, got.FailureReason)
	}

	if len(fixture.inventory.calls) != 2 {
		t.Fatalf("expected 2 stock movements got %d", len(fixture.inventory.calls))
	}
	for _, call := range fixture.inventory.calls {
		if call.Reason != enums.StockTransactionReasonPaymentFailed {
			t.Fatalf("unexpected movement reason %s", call.Reason)
		}
		if call.OrderID == nil || *call.OrderID != orderID {
			t.Fatalf("expected order ref on movement, got %+v", call.OrderID)
		}
		if call.PaymentID == nil || *call.PaymentID != payment.ID {
			t.Fatalf("expected payment ref on movement, got %+v", call.PaymentID)
		}
		if call.Actor == nil || *call.Actor != "system:gateway" {
			t.Fatalf("unexpected movement actor %v", call.Actor)
		}
	}
	if fixture.inventory.calls[0].Qty != 2 || fixture.inventory.calls[1].Qty != 1 {
		t.Fatalf("unexpected movement quantities %+v", fixture.inventory.calls)
	}

	if repo.rollupStatus != enums.OrderPaymentStatusFailed {
		t.Fatalf("expected order rollup failed got %s", repo.rollupStatus)
	}
	if len(fixture.outbox.events) != 1 || fixture.outbox.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected payment_failed event got %+v", fixture.outbox.events)
	}
}

func TestApplyGatewayEventUnknownTransaction(t *testing.T) {
	fixture := newTestService(t, &stubPaymentsRepo{})

	_, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: "txn_missing",
		Status:        enums.GatewayEventSucceeded,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestApplyGatewayEventValidation(t *testing.T) {
	fixture := newTestService(t, &stubPaymentsRepo{})

	_, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		Status: enums.GatewayEventSucceeded,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing transaction id got %v", err)
	}

	_, err = fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: "txn_x",
		Status:        enums.GatewayEventStatus("exploded"),
	})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad status got %v", err)
	}
}

func TestRefundPaymentPartialAmount(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	payment := pendingPayment(orderID, vendorID, 100, 10)
	payment.Status = enums.PaymentStatusCompleted
	repo := &stubPaymentsRepo{
		payments: []*models.Payment{payment},
		items: []models.OrderItem{
			{ID: uuid.New(), OrderID: orderID, PartID: uuid.New(), VendorID: vendorID, Quantity: 3},
		},
	}
	fixture := newTestService(t, repo)

	amount := decimal.NewFromInt(40)
	got, err := fixture.svc.RefundPayment(context.Background(), RefundPaymentInput{
		PaymentID:   payment.ID,
		ActorUserID: uuid.New(),
		Amount:      &amount,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Status != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded got %s", got.Status)
	}
	if got.RefundAmount == nil || !got.RefundAmount.Equal(amount) {
		t.Fatalf("expected refund 40 got %v", got.RefundAmount)
	}
	if len(fixture.inventory.calls) != 1 || fixture.inventory.calls[0].Reason != enums.StockTransactionReasonRefund {
		t.Fatalf("expected refund stock movement got %+v", fixture.inventory.calls)
	}
	if repo.rollupStatus != enums.OrderPaymentStatusRefunded {
		t.Fatalf("expected order rollup refunded got %s", repo.rollupStatus)
	}
	if len(fixture.outbox.events) != 1 || fixture.outbox.events[0].EventType != enums.EventPaymentRefunded {
		t.Fatalf("expected payment_refunded event got %+v", fixture.outbox.events)
	}
}

func TestRefundPaymentAmountTooLarge(t *testing.T) {
	payment := pendingPayment(uuid.New(), uuid.New(), 100, 10)
	payment.Status = enums.PaymentStatusCompleted
	repo := &stubPaymentsRepo{payments: []*models.Payment{payment}}
	fixture := newTestService(t, repo)

	amount := decimal.NewFromInt(150)
	_, err := fixture.svc.RefundPayment(context.Background(), RefundPaymentInput{
		PaymentID:   payment.ID,
		ActorUserID: uuid.New(),
		Amount:      &amount,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment should stay completed, got %s", payment.Status)
	}
}

func TestRefundPaymentDefaultsToFullAmount(t *testing.T) {
	payment := pendingPayment(uuid.New(), uuid.New(), 100, 10)
	payment.Status = enums.PaymentStatusCompleted
	repo := &stubPaymentsRepo{payments: []*models.Payment{payment}}
	fixture := newTestService(t, repo)

	got, err := fixture.svc.RefundPayment(context.Background(), RefundPaymentInput{
		PaymentID:   payment.ID,
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.RefundAmount == nil || !got.RefundAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected full refund got %v", got.RefundAmount)
	}
}

func TestCancelPaymentRestoresStock(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	payment := pendingPayment(orderID, vendorID, 100, 10)
	repo := &stubPaymentsRepo{
		payments: []*models.Payment{payment},
		items: []models.OrderItem{
			{ID: uuid.New(), OrderID: orderID, PartID: uuid.New(), VendorID: vendorID, Quantity: 4},
		},
	}
	fixture := newTestService(t, repo)

	got, err := fixture.svc.CancelPayment(context.Background(), CancelPaymentInput{
		PaymentID:   payment.ID,
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected cancelled got %s", got.Status)
	}
	if len(fixture.inventory.calls) != 1 || fixture.inventory.calls[0].Reason != enums.StockTransactionReasonOrderCancelled {
		t.Fatalf("expected order_cancelled movement got %+v", fixture.inventory.calls)
	}
	if len(fixture.outbox.events) != 1 || fixture.outbox.events[0].EventType != enums.EventPaymentCancelled {
		t.Fatalf("expected payment_cancelled event got %+v", fixture.outbox.events)
	}
}

func TestCancelPaymentRequiresActor(t *testing.T) {
	fixture := newTestService(t, &stubPaymentsRepo{})

	_, err := fixture.svc.CancelPayment(context.Background(), CancelPaymentInput{
		PaymentID: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized got %v", err)
	}
}

func TestOrderRollupWaitsForAllVendors(t *testing.T) {
	orderID := uuid.New()
	first := pendingPayment(orderID, uuid.New(), 100, 10)
	first.Status = enums.PaymentStatusProcessing
	second := pendingPayment(orderID, uuid.New(), 50, 0)
	second.Status = enums.PaymentStatusProcessing
	repo := &stubPaymentsRepo{payments: []*models.Payment{first, second}}
	fixture := newTestService(t, repo)

	_, err := fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: first.TransactionID,
		Status:        enums.GatewayEventSucceeded,
	})
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if repo.rollupStatus != enums.OrderPaymentStatusPending {
		t.Fatalf("expected pending rollup while one vendor unsettled, got %s", repo.rollupStatus)
	}
	if repo.rollupPaidAt != nil {
		t.Fatal("order must not be paid before every vendor settles")
	}

	_, err = fixture.svc.ApplyGatewayEvent(context.Background(), GatewayEventInput{
		TransactionID: second.TransactionID,
		Status:        enums.GatewayEventSucceeded,
	})
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if repo.rollupStatus != enums.OrderPaymentStatusCompleted {
		t.Fatalf("expected completed rollup, got %s", repo.rollupStatus)
	}
	if repo.rollupPaidAt == nil {
		t.Fatal("expected order paid_at after final settlement")
	}
}

func TestDeriveOrderStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []enums.PaymentStatus
		want     enums.OrderPaymentStatus
		paid     bool
	}{
		{name: "no payments", statuses: nil, want: enums.OrderPaymentStatusPending},
		{name: "all completed", statuses: []enums.PaymentStatus{enums.PaymentStatusCompleted, enums.PaymentStatusCompleted}, want: enums.OrderPaymentStatusCompleted, paid: true},
		{name: "one failed", statuses: []enums.PaymentStatus{enums.PaymentStatusCompleted, enums.PaymentStatusFailed}, want: enums.OrderPaymentStatusFailed},
		{name: "all refunded", statuses: []enums.PaymentStatus{enums.PaymentStatusRefunded, enums.PaymentStatusRefunded}, want: enums.OrderPaymentStatusRefunded},
		{name: "partial completion", statuses: []enums.PaymentStatus{enums.PaymentStatusCompleted, enums.PaymentStatusPending}, want: enums.OrderPaymentStatusPending},
		{name: "completed and refunded", statuses: []enums.PaymentStatus{enums.PaymentStatusCompleted, enums.PaymentStatusRefunded}, want: enums.OrderPaymentStatusPending},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payments := make([]models.Payment, len(tc.statuses))
			for i, status := range tc.statuses {
				payments[i] = models.Payment{Status: status}
			}
			got, paid := deriveOrderStatus(payments)
			if got != tc.want {
				t.Fatalf("expected %s got %s", tc.want, got)
			}
			if paid != tc.paid {
				t.Fatalf("expected paid=%v got %v", tc.paid, paid)
			}
		})
	}
}

func TestSweepStalePendingSkipsBrokenRows(t *testing.T) {
	orderID := uuid.New()
	healthy := pendingPayment(orderID, uuid.New(), 100, 10)
	orphan := pendingPayment(orderID, uuid.New(), 50, 5)
	repo := &stubPaymentsRepo{
		// The orphan shows up in the stale scan but cannot be loaded, so the
		// sweep logs it and keeps going.
		payments: []*models.Payment{healthy},
		stale:    []models.Payment{*healthy, *orphan},
	}
	fixture := newTestService(t, repo)

	swept, err := fixture.svc.SweepStalePending(context.Background(), time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept got %d", swept)
	}
	if healthy.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected stale payment cancelled got %s", healthy.Status)
	}

	if len(fixture.audit.records) != 1 {
		t.Fatalf("expected 1 audit record got %d", len(fixture.audit.records))
	}
	var meta struct {
		Reason *string `json:"reason"`
	}
	if err := json.Unmarshal(fixture.audit.records[0].Metadata, &meta); err != nil {
		t.Fatalf("decode audit metadata: %v", err)
	}
	if meta.Reason == nil || *meta.Reason == "" {
		t.Fatal("expected sweep reason in audit trail")
	}
}

func TestListVendorPaymentsEncodesCursor(t *testing.T) {
	vendorID := uuid.New()
	next := &pagination.Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ID: uuid.New()}
	repo := &stubPaymentsRepo{
		listByVendor: func(ctx context.Context, params listPaymentsParams) ([]models.Payment, *pagination.Cursor, error) {
			if params.VendorID != vendorID {
				t.Fatalf("unexpected vendor %s", params.VendorID)
			}
			return []models.Payment{{ID: uuid.New()}}, next, nil
		},
	}
	fixture := newTestService(t, repo)

	page, err := fixture.svc.ListVendorPayments(context.Background(), ListVendorPaymentsInput{VendorID: vendorID, Limit: 1})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(page.Payments) != 1 {
		t.Fatalf("expected 1 payment got %d", len(page.Payments))
	}
	if page.NextCursor == "" {
		t.Fatal("expected encoded next cursor")
	}

	_, err = fixture.svc.ListVendorPayments(context.Background(), ListVendorPaymentsInput{VendorID: vendorID, Cursor: "not-a-cursor"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}
