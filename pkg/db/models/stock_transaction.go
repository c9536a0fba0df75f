package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// StockTransaction is one immutable entry in the inventory ledger's
// append-only log. Rows are written in the same transaction as the counter
// mutation they describe and are never updated or deleted.
type StockTransaction struct {
	ID        uuid.UUID                    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PartID    uuid.UUID                    `gorm:"column:part_id;type:uuid;not null;index"`
	Delta     int                          `gorm:"column:delta;not null"`
	Reason    enums.StockTransactionReason `gorm:"column:reason;type:stock_transaction_reason;not null"`
	OrderID   *uuid.UUID                   `gorm:"column:order_id;type:uuid"`
	PaymentID *uuid.UUID                   `gorm:"column:payment_id;type:uuid"`
	Actor     *string                      `gorm:"column:actor"`
	CreatedAt time.Time                    `gorm:"column:created_at;autoCreateTime"`
}
