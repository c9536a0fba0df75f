package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// Order is a placed customer order. Items and totals are immutable after
// placement; only the payment rollup fields advance.
type Order struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   string                   `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID       *uuid.UUID               `gorm:"column:buyer_id;type:uuid"`
	TotalAmount   decimal.Decimal          `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentStatus enums.OrderPaymentStatus `gorm:"column:payment_status;type:order_payment_status;not null;default:'pending'"`
	PaidAt        *time.Time               `gorm:"column:paid_at"`
	Items         []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments      []Payment                `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
