package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/partsbay/partsbay-backend/pkg/outbox/payloads"
	"github.com/partsbay/partsbay-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditEvent, error)
}

type inventoryLedger interface {
	Increment(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) error
}

// Service owns the payment lifecycle: the per-vendor split recorded at
// placement, gateway-driven transitions, operator actions, and the order
// level rollup.
type Service interface {
	RecordSplit(ctx context.Context, tx *gorm.DB, input RecordSplitInput) ([]models.Payment, error)
	ApplyGatewayEvent(ctx context.Context, input GatewayEventInput) (*models.Payment, error)
	CancelPayment(ctx context.Context, input CancelPaymentInput) (*models.Payment, error)
	RefundPayment(ctx context.Context, input RefundPaymentInput) (*models.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListOrderPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ListVendorPayments(ctx context.Context, input ListVendorPaymentsInput) (*PaymentPage, error)
	SweepStalePending(ctx context.Context, olderThan time.Time) (int, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	audit     auditRecorder
	inventory inventoryLedger
	logg      *logger.Logger
}

// VendorShare is one vendor's slice of an order at placement time.
type VendorShare struct {
	VendorID         uuid.UUID
	Amount           decimal.Decimal
	CommissionAmount decimal.Decimal
}

// RecordSplitInput creates the pending payments for a freshly placed order.
type RecordSplitInput struct {
	OrderID uuid.UUID
	Shares  []VendorShare
}

// GatewayEventInput carries a verified gateway webhook notification.
type GatewayEventInput struct {
	TransactionID   string
	Status          enums.GatewayEventStatus
	FailureReason   *string
	RefundAmount    *decimal.Decimal
	GatewayMetadata json.RawMessage
}

// CancelPaymentInput is an operator cancellation of an unsettled payment.
type CancelPaymentInput struct {
	PaymentID   uuid.UUID
	ActorUserID uuid.UUID
	Reason      *string
}

// RefundPaymentInput is an operator refund of a completed payment.
type RefundPaymentInput struct {
	PaymentID   uuid.UUID
	ActorUserID uuid.UUID
	Amount      *decimal.Decimal
	Reason      *string
}

// ListVendorPaymentsInput filters a vendor's payment history.
type ListVendorPaymentsInput struct {
	VendorID uuid.UUID
	Status   *enums.PaymentStatus
	Limit    int
	Cursor   string
}

// PaymentPage is one page of payments plus the cursor for the next.
type PaymentPage struct {
	Payments   []models.Payment
	NextCursor string
}

type transitionMetadata struct {
	From          enums.PaymentStatus `json:"from"`
	To            enums.PaymentStatus `json:"to"`
	TransactionID string              `json:"transaction_id"`
	Reason        *string             `json:"reason,omitempty"`
	RefundAmount  *decimal.Decimal    `json:"refund_amount,omitempty"`
}

// NewService builds the settlement service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, auditSvc auditRecorder, inventorySvc inventoryLedger, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if inventorySvc == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		audit:     auditSvc,
		inventory: inventorySvc,
		logg:      logg,
	}, nil
}

// NewTransactionID mints the gateway correlation key for a payment.
func NewTransactionID() string {
	return "txn_" + uuid.NewString()
}

func (s *service) RecordSplit(ctx context.Context, tx *gorm.DB, input RecordSplitInput) ([]models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(input.Shares) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one vendor share required")
	}

	repo := s.repo.WithTx(tx)
	payments := make([]models.Payment, 0, len(input.Shares))
	for _, share := range input.Shares {
		if share.VendorID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required on every share")
		}
		if !share.Amount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "share amount must be positive")
		}
		if share.CommissionAmount.IsNegative() || share.CommissionAmount.GreaterThan(share.Amount) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission must stay within the share amount")
		}

		payment := models.Payment{
			OrderID:          input.OrderID,
			VendorID:         share.VendorID,
			Amount:           share.Amount,
			CommissionAmount: share.CommissionAmount,
			NetAmount:        share.Amount.Sub(share.CommissionAmount),
			TransactionID:    NewTransactionID(),
			Status:           enums.PaymentStatusPending,
		}
		if err := repo.Create(ctx, &payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func (s *service) ApplyGatewayEvent(ctx context.Context, input GatewayEventInput) (*models.Payment, error) {
	if input.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid gateway event status %q", input.Status))
	}
	target := paymentStatusForGatewayEvent(input.Status)

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.repo.WithTx(tx).GetByTransactionID(ctx, input.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no payment for transaction").
					WithDetails(map[string]string{"transaction_id": input.TransactionID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		payment, err = s.transition(ctx, tx, loaded, target, transitionOptions{
			failureReason:   input.FailureReason,
			refundAmount:    input.RefundAmount,
			gatewayMetadata: input.GatewayMetadata,
			actor:           &audit.Actor{System: "gateway"},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) CancelPayment(ctx context.Context, input CancelPaymentInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.loadPayment(ctx, tx, input.PaymentID)
		if err != nil {
			return err
		}
		payment, err = s.transition(ctx, tx, loaded, enums.PaymentStatusCancelled, transitionOptions{
			reason: input.Reason,
			actor:  &audit.Actor{UserID: input.ActorUserID, Role: "operator"},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) RefundPayment(ctx context.Context, input RefundPaymentInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.loadPayment(ctx, tx, input.PaymentID)
		if err != nil {
			return err
		}
		payment, err = s.transition(ctx, tx, loaded, enums.PaymentStatusRefunded, transitionOptions{
			refundAmount: input.Amount,
			reason:       input.Reason,
			actor:        &audit.Actor{UserID: input.ActorUserID, Role: "operator"},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	return s.loadPayment(ctx, nil, id)
}

func (s *service) ListOrderPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payments, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order payments")
	}
	return payments, nil
}

func (s *service) ListVendorPayments(ctx context.Context, input ListVendorPaymentsInput) (*PaymentPage, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", *input.Status))
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	payments, next, err := s.repo.ListByVendor(ctx, listPaymentsParams{
		VendorID: input.VendorID,
		Status:   input.Status,
		Limit:    input.Limit,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor payments")
	}

	page := &PaymentPage{Payments: payments}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// SweepStalePending cancels pending payments the gateway never confirmed,
// restoring their stock. Each payment moves in its own transaction so one
// bad row does not wedge the sweep.
func (s *service) SweepStalePending(ctx context.Context, olderThan time.Time) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, olderThan)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payments")
	}

	reason := "payment expired before gateway confirmation"
	swept := 0
	for i := range stale {
		payment := stale[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			loaded, err := s.loadPayment(ctx, tx, payment.ID)
			if err != nil {
				return err
			}
			_, err = s.transition(ctx, tx, loaded, enums.PaymentStatusCancelled, transitionOptions{
				reason: &reason,
				actor:  &audit.Actor{System: "stale-payment-sweep"},
			})
			return err
		})
		if err != nil {
			fields := map[string]any{"payment_id": payment.ID.String()}
			s.logg.Error(s.logg.WithFields(ctx, fields), "sweep stale payment", err)
			continue
		}
		swept++
	}
	return swept, nil
}

type transitionOptions struct {
	failureReason   *string
	refundAmount    *decimal.Decimal
	gatewayMetadata json.RawMessage
	reason          *string
	actor           *audit.Actor
}

// transition moves a payment through the state machine, restores inventory
// on failure paths, recomputes the order rollup, and records the audit
// trail. It is a no-op for same-state replays.
func (s *service) transition(ctx context.Context, tx *gorm.DB, payment *models.Payment, target enums.PaymentStatus, opts transitionOptions) (*models.Payment, error) {
	if payment.Status == target {
		fields := map[string]any{
			"payment_id":     payment.ID.String(),
			"transaction_id": payment.TransactionID,
			"status":         string(target),
		}
		s.logg.Debug(s.logg.WithFields(ctx, fields), "payment already in target status, replay ignored")
		return payment, nil
	}

	from := payment.Status
	if !canTransition(from, target) {
		metadata, _ := json.Marshal(transitionMetadata{
			From:          from,
			To:            target,
			TransactionID: payment.TransactionID,
		})
		// Recorded outside the transaction so the rejected attempt survives
		// the rollback triggered by the returned error.
		if _, auditErr := s.audit.Record(ctx, nil, audit.RecordInput{
			Action:     enums.AuditPaymentTransitionDenied,
			EntityType: audit.EntityPayment,
			EntityID:   payment.ID,
			Actor:      opts.actor,
			Metadata:   metadata,
		}); auditErr != nil {
			s.logg.Error(ctx, "record denied transition", auditErr)
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment cannot move from %s to %s", from, target)).
			WithDetails(map[string]string{"from": string(from), "to": string(target)})
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status": target,
		// The derived column is rewritten on every boundary so a drifted row
		// can never survive a transition.
		"net_amount": payment.Amount.Sub(payment.CommissionAmount),
	}

	var refund *decimal.Decimal
	switch target {
	case enums.PaymentStatusCompleted:
		updates["paid_at"] = now
		paidAt := now
		payment.PaidAt = &paidAt
	case enums.PaymentStatusFailed:
		if opts.failureReason != nil {
			updates["failure_reason"] = *opts.failureReason
			payment.FailureReason = opts.failureReason
		}
	case enums.PaymentStatusRefunded:
		amount := payment.Amount
		if opts.refundAmount != nil {
			if !opts.refundAmount.IsPositive() || opts.refundAmount.GreaterThan(payment.Amount) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive and within the payment amount")
			}
			amount = *opts.refundAmount
		}
		refund = &amount
		updates["refund_amount"] = amount
		payment.RefundAmount = refund
	}
	if len(opts.gatewayMetadata) > 0 {
		updates["gateway_metadata"] = opts.gatewayMetadata
		payment.GatewayMetadata = opts.gatewayMetadata
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Update(ctx, payment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	payment.Status = target
	payment.NetAmount = payment.Amount.Sub(payment.CommissionAmount)

	if reason, restock := restockReasonFor(target); restock {
		if err := s.restoreInventory(ctx, tx, payment, reason, opts.actor); err != nil {
			return nil, err
		}
	}

	if err := s.rollupOrder(ctx, tx, payment.OrderID); err != nil {
		return nil, err
	}

	reasonText := opts.reason
	if reasonText == nil {
		reasonText = opts.failureReason
	}
	metadata, err := json.Marshal(transitionMetadata{
		From:          from,
		To:            target,
		TransactionID: payment.TransactionID,
		Reason:        reasonText,
		RefundAmount:  refund,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transition metadata")
	}
	if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
		Action:     enums.AuditPaymentStatusChanged,
		EntityType: audit.EntityPayment,
		EntityID:   payment.ID,
		Actor:      opts.actor,
		Metadata:   metadata,
	}); err != nil {
		return nil, err
	}

	if eventType := eventTypeFor(target); eventType != "" {
		if err := s.emitStatusEvent(ctx, tx, payment, eventType, opts.actor); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

func (s *service) restoreInventory(ctx context.Context, tx *gorm.DB, payment *models.Payment, reason enums.StockTransactionReason, actor *audit.Actor) error {
	items, err := s.repo.WithTx(tx).ListOrderItemsForVendor(ctx, payment.OrderID, payment.VendorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items for restock")
	}

	var actorRef *string
	if actor != nil {
		if actor.System != "" {
			system := "system:" + actor.System
			actorRef = &system
		} else if actor.UserID != uuid.Nil {
			user := "user:" + actor.UserID.String()
			actorRef = &user
		}
	}

	orderID := payment.OrderID
	paymentID := payment.ID
	for _, item := range items {
		if err := s.inventory.Increment(ctx, tx, inventory.MovementInput{
			PartID:    item.PartID,
			Qty:       item.Quantity,
			Reason:    reason,
			OrderID:   &orderID,
			PaymentID: &paymentID,
			Actor:     actorRef,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) rollupOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	payments, err := repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments for rollup")
	}

	status, paid := deriveOrderStatus(payments)
	var paidAt *time.Time
	if paid {
		now := time.Now().UTC()
		paidAt = &now
	}
	if err := repo.UpdateOrderRollup(ctx, orderID, status, paidAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order rollup")
	}
	return nil
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, payment *models.Payment, eventType enums.OutboxEventType, actor *audit.Actor) error {
	var actorRef *outbox.ActorRef
	if actor != nil && actor.UserID != uuid.Nil {
		actorRef = &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
	}

	data := payloads.PaymentStatusChangedEvent{
		PaymentID:        payment.ID,
		OrderID:          payment.OrderID,
		VendorID:         payment.VendorID,
		TransactionID:    payment.TransactionID,
		Status:           payment.Status,
		Amount:           payment.Amount,
		CommissionAmount: payment.CommissionAmount,
		NetAmount:        payment.NetAmount,
		RefundAmount:     payment.RefundAmount,
	}
	if payment.FailureReason != nil {
		data.FailureReason = *payment.FailureReason
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Actor:         actorRef,
		Data:          data,
	})
}

func (s *service) loadPayment(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.WithTx(tx).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// canTransition is the whole state machine. Completion and failure only
// ever follow a processing notification; failed, refunded and cancelled
// are terminal.
func canTransition(from, to enums.PaymentStatus) bool {
	switch from {
	case enums.PaymentStatusPending:
		return to == enums.PaymentStatusProcessing ||
			to == enums.PaymentStatusCancelled
	case enums.PaymentStatusProcessing:
		return to == enums.PaymentStatusCompleted ||
			to == enums.PaymentStatusFailed ||
			to == enums.PaymentStatusCancelled
	case enums.PaymentStatusCompleted:
		return to == enums.PaymentStatusRefunded
	default:
		return false
	}
}

func paymentStatusForGatewayEvent(status enums.GatewayEventStatus) enums.PaymentStatus {
	switch status {
	case enums.GatewayEventProcessing:
		return enums.PaymentStatusProcessing
	case enums.GatewayEventSucceeded:
		return enums.PaymentStatusCompleted
	case enums.GatewayEventFailed:
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusRefunded
	}
}

func restockReasonFor(target enums.PaymentStatus) (enums.StockTransactionReason, bool) {
	switch target {
	case enums.PaymentStatusFailed:
		return enums.StockTransactionReasonPaymentFailed, true
	case enums.PaymentStatusRefunded:
		return enums.StockTransactionReasonRefund, true
	case enums.PaymentStatusCancelled:
		return enums.StockTransactionReasonOrderCancelled, true
	default:
		return "", false
	}
}

func eventTypeFor(target enums.PaymentStatus) enums.OutboxEventType {
	switch target {
	case enums.PaymentStatusCompleted:
		return enums.EventPaymentCompleted
	case enums.PaymentStatusFailed:
		return enums.EventPaymentFailed
	case enums.PaymentStatusRefunded:
		return enums.EventPaymentRefunded
	case enums.PaymentStatusCancelled:
		return enums.EventPaymentCancelled
	default:
		return ""
	}
}

func deriveOrderStatus(payments []models.Payment) (enums.OrderPaymentStatus, bool) {
	if len(payments) == 0 {
		return enums.OrderPaymentStatusPending, false
	}

	completed := 0
	refunded := 0
	for _, payment := range payments {
		switch payment.Status {
		case enums.PaymentStatusFailed:
			return enums.OrderPaymentStatusFailed, false
		case enums.PaymentStatusCompleted:
			completed++
		case enums.PaymentStatusRefunded:
			refunded++
		}
	}
	if completed == len(payments) {
		return enums.OrderPaymentStatusCompleted, true
	}
	if refunded == len(payments) {
		return enums.OrderPaymentStatusRefunded, false
	}
	return enums.OrderPaymentStatusPending, false
}
