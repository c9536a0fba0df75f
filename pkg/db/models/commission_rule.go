package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionRule is one row in the commission rate table. Scope is encoded
// by which of VendorID/CategoryID are set: both = vendor+category, vendor
// only, category only, or neither = platform default. Rows referenced by a
// settled payment are never mutated; a rate change deactivates the old row
// and inserts a new one.
type CommissionRule struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID       *uuid.UUID      `gorm:"column:vendor_id;type:uuid;index"`
	CategoryID     *uuid.UUID      `gorm:"column:category_id;type:uuid;index"`
	RatePercentage decimal.Decimal `gorm:"column:rate_percentage;type:numeric(5,2);not null"`
	FixedAmount    decimal.Decimal `gorm:"column:fixed_amount;type:numeric(12,2);not null;default:0"`
	EffectiveFrom  time.Time       `gorm:"column:effective_from;not null"`
	EffectiveUntil *time.Time      `gorm:"column:effective_until"`
	IsActive       bool            `gorm:"column:is_active;not null;default:true"`
	CreatedBy      *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
