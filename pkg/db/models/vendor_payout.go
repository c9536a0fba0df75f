package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// VendorPayout aggregates a vendor's completed payments over one period.
// Exactly one row exists per (vendor, period_start, period_end); the
// aggregator upserts into it. PayoutAmount = TotalSales -
// CommissionDeducted + AdjustmentAmount, recomputed on every write.
type VendorPayout struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID           uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:idx_vendor_payout_period,priority:1"`
	PeriodStart        time.Time          `gorm:"column:period_start;not null;uniqueIndex:idx_vendor_payout_period,priority:2"`
	PeriodEnd          time.Time          `gorm:"column:period_end;not null;uniqueIndex:idx_vendor_payout_period,priority:3"`
	TotalSales         decimal.Decimal    `gorm:"column:total_sales;type:numeric(12,2);not null"`
	CommissionDeducted decimal.Decimal    `gorm:"column:commission_deducted;type:numeric(12,2);not null"`
	AdjustmentAmount   decimal.Decimal    `gorm:"column:adjustment_amount;type:numeric(12,2);not null;default:0"`
	PayoutAmount       decimal.Decimal    `gorm:"column:payout_amount;type:numeric(12,2);not null"`
	PaymentCount       int                `gorm:"column:payment_count;not null;default:0"`
	Status             enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	AdjustmentNote     *string            `gorm:"column:adjustment_note"`
	ApprovedBy         *uuid.UUID         `gorm:"column:approved_by;type:uuid"`
	ApprovedAt         *time.Time         `gorm:"column:approved_at"`
	PaidAt             *time.Time         `gorm:"column:paid_at"`
	PayoutReference    *string            `gorm:"column:payout_reference"`
	RejectionReason    *string            `gorm:"column:rejection_reason"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
