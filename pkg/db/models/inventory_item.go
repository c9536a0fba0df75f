package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem holds the stock counter for one part. Quantity is mutated
// only through the inventory ledger's conditional updates and never drops
// below zero.
type InventoryItem struct {
	PartID       uuid.UUID `gorm:"column:part_id;type:uuid;primaryKey"`
	Quantity     int       `gorm:"column:quantity;not null;default:0"`
	SafetyStock  int       `gorm:"column:safety_stock;not null;default:0"`
	ReorderPoint int       `gorm:"column:reorder_point;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
