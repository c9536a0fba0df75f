package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/internal/audit"
	dbpkg "github.com/partsbay/partsbay-backend/pkg/db"
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

// Service aggregates settled payments into per-vendor payouts and drives
// the operator approval flow. Totals freeze once a payout leaves
// pending/on_hold; operator transitions never recompute them.
type Service interface {
	Aggregate(ctx context.Context, input AggregateInput) (*models.VendorPayout, error)
	AggregateAllVendors(ctx context.Context, periodStart, periodEnd time.Time) (AggregateSummary, error)
	Approve(ctx context.Context, input OperatorActionInput) (*models.VendorPayout, error)
	Hold(ctx context.Context, input OperatorActionInput) (*models.VendorPayout, error)
	BeginProcessing(ctx context.Context, input OperatorActionInput) (*models.VendorPayout, error)
	MarkPaid(ctx context.Context, input MarkPaidInput) (*models.VendorPayout, error)
	Reject(ctx context.Context, input RejectInput) (*models.VendorPayout, error)
	SetAdjustment(ctx context.Context, input AdjustmentInput) (*models.VendorPayout, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error)
	ListPayouts(ctx context.Context, input ListPayoutsInput) (*PayoutPage, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	audit  auditRecorder
	logg   *logger.Logger
}

// AggregateInput bounds one aggregation run. The period is half-open:
// payments with paid_at in [PeriodStart, PeriodEnd) are included.
type AggregateInput struct {
	VendorID    uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// AggregateSummary reports one AggregateAllVendors run.
type AggregateSummary struct {
	Aggregated int
	Frozen     int
}

// OperatorActionInput is a bare status transition request.
type OperatorActionInput struct {
	PayoutID    uuid.UUID
	ActorUserID uuid.UUID
	Reason      *string
}

// MarkPaidInput records that funds left the platform.
type MarkPaidInput struct {
	PayoutID        uuid.UUID
	ActorUserID     uuid.UUID
	PayoutReference string
}

// RejectInput declines a payout with a mandatory reason.
type RejectInput struct {
	PayoutID    uuid.UUID
	ActorUserID uuid.UUID
	Reason      string
}

// AdjustmentInput sets the manual correction applied on top of the
// aggregated totals. Amount may be negative.
type AdjustmentInput struct {
	PayoutID    uuid.UUID
	Amount      decimal.Decimal
	Note        *string
	ActorUserID uuid.UUID
}

// ListPayoutsInput filters the payout list. VendorID nil means all vendors.
type ListPayoutsInput struct {
	VendorID *uuid.UUID
	Status   *enums.PayoutStatus
	Limit    int
	Cursor   string
}

// PayoutPage is one page of payouts plus the cursor for the next.
type PayoutPage struct {
	Payouts    []models.VendorPayout
	NextCursor string
}

type payoutTransitionMetadata struct {
	From            enums.PayoutStatus `json:"from"`
	To              enums.PayoutStatus `json:"to"`
	Reason          *string            `json:"reason,omitempty"`
	PayoutReference *string            `json:"payout_reference,omitempty"`
}

// NewService builds the payout service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, auditSvc auditRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
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
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		audit:  auditSvc,
		logg:   logg,
	}, nil
}

func (s *service) Aggregate(ctx context.Context, input AggregateInput) (*models.VendorPayout, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	periodStart := input.PeriodStart.UTC()
	periodEnd := input.PeriodEnd.UTC()
	if !periodStart.Before(periodEnd) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period start must precede period end")
	}

	var payout *models.VendorPayout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByPeriod(ctx, input.VendorID, periodStart, periodEnd)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payout")
		}
		if existing != nil && !existing.Status.AllowsReaggregation() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payout totals are frozen in status %s", existing.Status)).
				WithDetails(map[string]string{"payout_id": existing.ID.String(), "status": string(existing.Status)})
		}

		aggregate, err := repo.AggregateCompletedPayments(ctx, input.VendorID, periodStart, periodEnd)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payments")
		}

		if existing == nil {
			if aggregate.PaymentCount == 0 {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no completed payments for vendor in period")
			}
			payout, err = s.createPayout(ctx, tx, input.VendorID, periodStart, periodEnd, aggregate)
			return err
		}

		payout, err = s.refreshPayout(ctx, tx, existing, aggregate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *service) createPayout(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, periodStart, periodEnd time.Time, aggregate PaymentAggregate) (*models.VendorPayout, error) {
	payout := &models.VendorPayout{
		VendorID:           vendorID,
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		TotalSales:         aggregate.TotalSales,
		CommissionDeducted: aggregate.CommissionDeducted,
		AdjustmentAmount:   decimal.Zero,
		PayoutAmount:       aggregate.TotalSales.Sub(aggregate.CommissionDeducted),
		PaymentCount:       aggregate.PaymentCount,
		Status:             enums.PayoutStatusPending,
	}
	if err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_vendor_payout_period") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payout aggregated concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutCreated,
		AggregateType: enums.AggregateVendorPayout,
		AggregateID:   payout.ID,
		Version:       1,
		Data: payloads.PayoutCreatedEvent{
			PayoutID:     payout.ID,
			VendorID:     payout.VendorID,
			PeriodStart:  payout.PeriodStart,
			PeriodEnd:    payout.PeriodEnd,
			PayoutAmount: payout.PayoutAmount,
			PaymentCount: payout.PaymentCount,
		},
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *service) refreshPayout(ctx context.Context, tx *gorm.DB, existing *models.VendorPayout, aggregate PaymentAggregate) (*models.VendorPayout, error) {
	payoutAmount := aggregate.TotalSales.Sub(aggregate.CommissionDeducted).Add(existing.AdjustmentAmount)
	updates := map[string]any{
		"total_sales":         aggregate.TotalSales,
		"commission_deducted": aggregate.CommissionDeducted,
		"payment_count":       aggregate.PaymentCount,
		"payout_amount":       payoutAmount,
	}
	if err := s.repo.WithTx(tx).Update(ctx, existing.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh payout")
	}

	existing.TotalSales = aggregate.TotalSales
	existing.CommissionDeducted = aggregate.CommissionDeducted
	existing.PaymentCount = aggregate.PaymentCount
	existing.PayoutAmount = payoutAmount
	return existing, nil
}

// AggregateAllVendors closes a period for every vendor with settled money
// in it. Frozen payouts are counted and skipped; other failures are
// collected so one vendor cannot block the rest.
func (s *service) AggregateAllVendors(ctx context.Context, periodStart, periodEnd time.Time) (AggregateSummary, error) {
	summary := AggregateSummary{}
	vendorIDs, err := s.repo.ListVendorsWithCompletedPayments(ctx, periodStart.UTC(), periodEnd.UTC())
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendors with payments")
	}

	var errs error
	for _, vendorID := range vendorIDs {
		_, err := s.Aggregate(ctx, AggregateInput{
			VendorID:    vendorID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		})
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				summary.Frozen++
				fields := map[string]any{"vendor_id": vendorID.String()}
				s.logg.Debug(s.logg.WithFields(ctx, fields), "payout already frozen, skipping re-aggregation")
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", vendorID, err))
			continue
		}
		summary.Aggregated++
	}
	return summary, errs
}

func (s *service) Approve(ctx context.Context, input OperatorActionInput) (*models.VendorPayout, error) {
	return s.operatorTransition(ctx, input.PayoutID, input.ActorUserID, enums.PayoutStatusApproved, transitionExtras{reason: input.Reason})
}

func (s *service) Hold(ctx context.Context, input OperatorActionInput) (*models.VendorPayout, error) {
	return s.operatorTransition(ctx, input.PayoutID, input.ActorUserID, enums.PayoutStatusOnHold, transitionExtras{reason: input.Reason})
}

func (s *service) BeginProcessing(ctx context.Context, input OperatorActionInput) (*models.VendorPayout, error) {
	return s.operatorTransition(ctx, input.PayoutID, input.ActorUserID, enums.PayoutStatusProcessing, transitionExtras{reason: input.Reason})
}

func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) (*models.VendorPayout, error) {
	if input.PayoutReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout reference required")
	}
	return s.operatorTransition(ctx, input.PayoutID, input.ActorUserID, enums.PayoutStatusPaid, transitionExtras{payoutReference: &input.PayoutReference})
}

func (s *service) Reject(ctx context.Context, input RejectInput) (*models.VendorPayout, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	return s.operatorTransition(ctx, input.PayoutID, input.ActorUserID, enums.PayoutStatusRejected, transitionExtras{reason: &input.Reason})
}

type transitionExtras struct {
	reason          *string
	payoutReference *string
}

func (s *service) operatorTransition(ctx context.Context, payoutID, actorUserID uuid.UUID, target enums.PayoutStatus, extras transitionExtras) (*models.VendorPayout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var payout *models.VendorPayout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.GetByID(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}

		if loaded.Status == target {
			fields := map[string]any{"payout_id": loaded.ID.String(), "status": string(target)}
			s.logg.Debug(s.logg.WithFields(ctx, fields), "payout already in target status")
			payout = loaded
			return nil
		}
		from := loaded.Status
		if !canTransitionPayout(from, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payout cannot move from %s to %s", from, target)).
				WithDetails(map[string]string{"from": string(from), "to": string(target)})
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": target}
		switch target {
		case enums.PayoutStatusApproved:
			updates["approved_by"] = actorUserID
			updates["approved_at"] = now
			loaded.ApprovedBy = &actorUserID
			loaded.ApprovedAt = &now
		case enums.PayoutStatusPaid:
			updates["paid_at"] = now
			updates["payout_reference"] = *extras.payoutReference
			loaded.PaidAt = &now
			loaded.PayoutReference = extras.payoutReference
		case enums.PayoutStatusRejected:
			updates["rejection_reason"] = *extras.reason
			loaded.RejectionReason = extras.reason
		}
		if err := repo.Update(ctx, loaded.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout")
		}
		loaded.Status = target

		metadata, err := json.Marshal(payoutTransitionMetadata{
			From:            from,
			To:              target,
			Reason:          extras.reason,
			PayoutReference: extras.payoutReference,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transition metadata")
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditPayoutStatusChanged,
			EntityType: audit.EntityVendorPayout,
			EntityID:   loaded.ID,
			Actor:      &audit.Actor{UserID: actorUserID, Role: "operator"},
			Metadata:   metadata,
		}); err != nil {
			return err
		}

		if target == enums.PayoutStatusPaid {
			err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutPaid,
				AggregateType: enums.AggregateVendorPayout,
				AggregateID:   loaded.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: actorUserID, Role: "operator"},
				Data: payloads.PayoutPaidEvent{
					PayoutID:        loaded.ID,
					VendorID:        loaded.VendorID,
					PayoutAmount:    loaded.PayoutAmount,
					PayoutReference: *extras.payoutReference,
					PaidAt:          now,
				},
			})
			if err != nil {
				return err
			}
		}

		payout = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *service) SetAdjustment(ctx context.Context, input AdjustmentInput) (*models.VendorPayout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var payout *models.VendorPayout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.GetByID(ctx, input.PayoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}
		if loaded.Status != enums.PayoutStatusPending && loaded.Status != enums.PayoutStatusOnHold {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("adjustments are locked in status %s", loaded.Status))
		}

		previousAmount := loaded.PayoutAmount
		payoutAmount := loaded.TotalSales.Sub(loaded.CommissionDeducted).Add(input.Amount)
		updates := map[string]any{
			"adjustment_amount": input.Amount,
			"adjustment_note":   input.Note,
			"payout_amount":     payoutAmount,
		}
		if err := repo.Update(ctx, loaded.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout adjustment")
		}
		loaded.AdjustmentAmount = input.Amount
		loaded.AdjustmentNote = input.Note
		loaded.PayoutAmount = payoutAmount

		metadata, err := json.Marshal(map[string]any{
			"adjustment_amount": input.Amount,
			"note":              input.Note,
			"previous_amount":   previousAmount,
			"payout_amount":     payoutAmount,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode adjustment metadata")
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditPayoutAdjustmentSet,
			EntityType: audit.EntityVendorPayout,
			EntityID:   loaded.ID,
			Actor:      &audit.Actor{UserID: input.ActorUserID, Role: "operator"},
			Metadata:   metadata,
		}); err != nil {
			return err
		}

		payout = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *service) GetPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	payout, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) ListPayouts(ctx context.Context, input ListPayoutsInput) (*PayoutPage, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payout status %q", *input.Status))
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	payouts, next, err := s.repo.List(ctx, listPayoutsParams{
		VendorID: input.VendorID,
		Status:   input.Status,
		Limit:    input.Limit,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}

	page := &PayoutPage{Payouts: payouts}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func canTransitionPayout(from, to enums.PayoutStatus) bool {
	switch from {
	case enums.PayoutStatusPending:
		return to == enums.PayoutStatusApproved ||
			to == enums.PayoutStatusRejected ||
			to == enums.PayoutStatusOnHold
	case enums.PayoutStatusOnHold:
		return to == enums.PayoutStatusApproved ||
			to == enums.PayoutStatusRejected
	case enums.PayoutStatusApproved:
		return to == enums.PayoutStatusProcessing ||
			to == enums.PayoutStatusRejected
	case enums.PayoutStatusProcessing:
		return to == enums.PayoutStatusPaid
	default:
		return false
	}
}
