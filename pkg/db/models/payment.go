package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// Payment is one vendor's share of one order. Invariants enforced at every
// write boundary: 0 <= CommissionAmount <= Amount and NetAmount = Amount -
// CommissionAmount. TransactionID is generated at creation, handed to the
// gateway, and echoed back by webhook events as the idempotency key.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID         uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	CommissionAmount decimal.Decimal     `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	NetAmount        decimal.Decimal     `gorm:"column:net_amount;type:numeric(12,2);not null"`
	TransactionID    string              `gorm:"column:transaction_id;not null;uniqueIndex"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	RefundAmount     *decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2)"`
	FailureReason    *string             `gorm:"column:failure_reason"`
	GatewayMetadata  json.RawMessage     `gorm:"column:gateway_metadata;type:jsonb"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
