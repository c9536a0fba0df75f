package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	"github.com/partsbay/partsbay-backend/pkg/pagination"
)

// Repository exposes persistence helpers for vendor payouts. The payments
// table is read-only from here; only payout rows are written.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AggregateCompletedPayments(ctx context.Context, vendorID uuid.UUID, periodStart, periodEnd time.Time) (PaymentAggregate, error)
	ListVendorsWithCompletedPayments(ctx context.Context, periodStart, periodEnd time.Time) ([]uuid.UUID, error)
	Create(ctx context.Context, payout *models.VendorPayout) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error)
	FindByPeriod(ctx context.Context, vendorID uuid.UUID, periodStart, periodEnd time.Time) (*models.VendorPayout, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, params listPayoutsParams) ([]models.VendorPayout, *pagination.Cursor, error)
}

// PaymentAggregate is the settled-money rollup for one vendor and period.
type PaymentAggregate struct {
	TotalSales         decimal.Decimal
	CommissionDeducted decimal.Decimal
	PaymentCount       int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listPayoutsParams struct {
	VendorID *uuid.UUID
	Status   *enums.PayoutStatus
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

const completedPaymentsQuery = `
SELECT
  COALESCE(SUM(amount), 0) AS total_sales,
  COALESCE(SUM(commission_amount), 0) AS commission_deducted,
  COUNT(*) AS payment_count
FROM payments
WHERE vendor_id = ?
  AND status = ?
  AND paid_at >= ? AND paid_at < ?
`

func (r *repository) AggregateCompletedPayments(ctx context.Context, vendorID uuid.UUID, periodStart, periodEnd time.Time) (PaymentAggregate, error) {
	type aggregateRow struct {
		TotalSales         decimal.Decimal
		CommissionDeducted decimal.Decimal
		PaymentCount       int64
	}

	var row aggregateRow
	err := r.db.WithContext(ctx).
		Raw(completedPaymentsQuery, vendorID, enums.PaymentStatusCompleted, periodStart, periodEnd).
		Scan(&row).Error
	if err != nil {
		return PaymentAggregate{}, err
	}
	return PaymentAggregate{
		TotalSales:         row.TotalSales,
		CommissionDeducted: row.CommissionDeducted,
		PaymentCount:       int(row.PaymentCount),
	}, nil
}

func (r *repository) ListVendorsWithCompletedPayments(ctx context.Context, periodStart, periodEnd time.Time) ([]uuid.UUID, error) {
	var vendorIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Distinct("vendor_id").
		Where("status = ? AND paid_at >= ? AND paid_at < ?", enums.PaymentStatusCompleted, periodStart, periodEnd).
		Pluck("vendor_id", &vendorIDs).Error
	if err != nil {
		return nil, err
	}
	return vendorIDs, nil
}

func (r *repository) Create(ctx context.Context, payout *models.VendorPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	var payout models.VendorPayout
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByPeriod(ctx context.Context, vendorID uuid.UUID, periodStart, periodEnd time.Time) (*models.VendorPayout, error) {
	var payout models.VendorPayout
	err := r.db.WithContext(ctx).
		First(&payout, "vendor_id = ? AND period_start = ? AND period_end = ?", vendorID, periodStart, periodEnd).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorPayout{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, params listPayoutsParams) ([]models.VendorPayout, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.VendorPayout{})
	if params.VendorID != nil {
		query = query.Where("vendor_id = ?", *params.VendorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var payouts []models.VendorPayout
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&payouts).Error; err != nil {
		return nil, nil, err
	}

	if len(payouts) > normalized {
		payouts = payouts[:normalized]
		last := payouts[normalized-1]
		return payouts, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return payouts, nil, nil
}
