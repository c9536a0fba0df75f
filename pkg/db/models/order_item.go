package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem snapshots one part line at placement time. PartName and
// UnitPrice are copied from the catalog so later edits never change what
// was sold.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	PartID     uuid.UUID       `gorm:"column:part_id;type:uuid;not null"`
	VendorID   uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	CategoryID *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	PartName   string          `gorm:"column:part_name;not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal  decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
