package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// Part is a vendor-owned catalog entry. The settlement engine reads parts
// for ownership, pricing, and the category feeding commission resolution.
type Part struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null;index"`
	CategoryID  *uuid.UUID       `gorm:"column:category_id;type:uuid"`
	Category    *PartCategory    `gorm:"foreignKey:CategoryID"`
	SKU         string           `gorm:"column:sku;not null;uniqueIndex"`
	Name        string           `gorm:"column:name;not null"`
	UnitPrice   decimal.Decimal  `gorm:"column:unit_price;type:numeric(12,2);not null"`
	MinOrderQty int              `gorm:"column:min_order_qty;not null;default:1"`
	Fitment     pq.StringArray   `gorm:"column:fitment;type:text[];default:ARRAY[]::text[]"`
	Status      enums.PartStatus `gorm:"column:status;type:part_status;not null;default:'active'"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
