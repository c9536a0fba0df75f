package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// OrderCreatedEvent signals a placed order split into per-vendor payments.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	VendorIDs   []uuid.UUID     `json:"vendor_ids"`
	PaymentIDs  []uuid.UUID     `json:"payment_ids"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PaymentStatusChangedEvent is emitted when a payment reaches completed,
// failed, refunded, or cancelled.
type PaymentStatusChangedEvent struct {
	PaymentID        uuid.UUID           `json:"payment_id"`
	OrderID          uuid.UUID           `json:"order_id"`
	VendorID         uuid.UUID           `json:"vendor_id"`
	TransactionID    string              `json:"transaction_id"`
	Status           enums.PaymentStatus `json:"status"`
	Amount           decimal.Decimal     `json:"amount"`
	CommissionAmount decimal.Decimal     `json:"commission_amount"`
	NetAmount        decimal.Decimal     `json:"net_amount"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	RefundAmount     *decimal.Decimal    `json:"refund_amount,omitempty"`
}

// PayoutCreatedEvent announces a new or re-aggregated payout row.
type PayoutCreatedEvent struct {
	PayoutID     uuid.UUID       `json:"payout_id"`
	VendorID     uuid.UUID       `json:"vendor_id"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	PayoutAmount decimal.Decimal `json:"payout_amount"`
	PaymentCount int             `json:"payment_count"`
}

// PayoutPaidEvent confirms funds left the platform for a vendor.
type PayoutPaidEvent struct {
	PayoutID        uuid.UUID       `json:"payout_id"`
	VendorID        uuid.UUID       `json:"vendor_id"`
	PayoutAmount    decimal.Decimal `json:"payout_amount"`
	PayoutReference string          `json:"payout_reference,omitempty"`
	PaidAt          time.Time       `json:"paid_at"`
}

// InventoryLowStockEvent alerts that a part's counter fell to its reorder point.
type InventoryLowStockEvent struct {
	PartID       uuid.UUID `json:"part_id"`
	VendorID     uuid.UUID `json:"vendor_id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	ReorderPoint int       `json:"reorder_point"`
}
