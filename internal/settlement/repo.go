package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	"github.com/partsbay/partsbay-backend/pkg/pagination"
)

// Repository exposes persistence helpers for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ListByVendor(ctx context.Context, params listPaymentsParams) ([]models.Payment, *pagination.Cursor, error)
	ListStalePending(ctx context.Context, olderThan time.Time) ([]models.Payment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListOrderItemsForVendor(ctx context.Context, orderID, vendorID uuid.UUID) ([]models.OrderItem, error)
	UpdateOrderRollup(ctx context.Context, orderID uuid.UUID, status enums.OrderPaymentStatus, paidAt *time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listPaymentsParams struct {
	VendorID uuid.UUID
	Status   *enums.PaymentStatus
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListByVendor(ctx context.Context, params listPaymentsParams) ([]models.Payment, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("vendor_id = ?", params.VendorID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var payments []models.Payment
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&payments).Error; err != nil {
		return nil, nil, err
	}

	if len(payments) > normalized {
		payments = payments[:normalized]
		last := payments[normalized-1]
		return payments, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return payments, nil, nil
}

func (r *repository) ListStalePending(ctx context.Context, olderThan time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, olderThan).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListOrderItemsForVendor(ctx context.Context, orderID, vendorID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND vendor_id = ?", orderID, vendorID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateOrderRollup(ctx context.Context, orderID uuid.UUID, status enums.OrderPaymentStatus, paidAt *time.Time) error {
	updates := map[string]any{"payment_status": status}
	if paidAt != nil {
		updates["paid_at"] = paidAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
