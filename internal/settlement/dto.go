package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// PaymentDTO is the API projection of one vendor payment.
type PaymentDTO struct {
	ID               uuid.UUID           `json:"id"`
	OrderID          uuid.UUID           `json:"order_id"`
	VendorID         uuid.UUID           `json:"vendor_id"`
	Amount           decimal.Decimal     `json:"amount"`
	CommissionAmount decimal.Decimal     `json:"commission_amount"`
	NetAmount        decimal.Decimal     `json:"net_amount"`
	TransactionID    string              `json:"transaction_id"`
	Status           enums.PaymentStatus `json:"status"`
	RefundAmount     *decimal.Decimal    `json:"refund_amount,omitempty"`
	FailureReason    *string             `json:"failure_reason,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// PaymentPageDTO is one page of payments plus the cursor for the next.
type PaymentPageDTO struct {
	Payments   []PaymentDTO `json:"payments"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// PaymentFromModel projects a stored payment into its API shape.
func PaymentFromModel(m *models.Payment) *PaymentDTO {
	if m == nil {
		return nil
	}
	return &PaymentDTO{
		ID:               m.ID,
		OrderID:          m.OrderID,
		VendorID:         m.VendorID,
		Amount:           m.Amount,
		CommissionAmount: m.CommissionAmount,
		NetAmount:        m.NetAmount,
		TransactionID:    m.TransactionID,
		Status:           m.Status,
		RefundAmount:     m.RefundAmount,
		FailureReason:    m.FailureReason,
		PaidAt:           m.PaidAt,
		CreatedAt:        m.CreatedAt,
	}
}

// PaymentPageFromModels projects one repo page into its API shape.
func PaymentPageFromModels(page *PaymentPage) *PaymentPageDTO {
	if page == nil {
		return &PaymentPageDTO{Payments: []PaymentDTO{}}
	}
	dto := &PaymentPageDTO{
		Payments:   make([]PaymentDTO, 0, len(page.Payments)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Payments {
		dto.Payments = append(dto.Payments, *PaymentFromModel(&page.Payments[i]))
	}
	return dto
}
