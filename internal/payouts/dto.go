package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// PayoutDTO is the API projection of one vendor payout.
type PayoutDTO struct {
	ID                 uuid.UUID          `json:"id"`
	VendorID           uuid.UUID          `json:"vendor_id"`
	PeriodStart        time.Time          `json:"period_start"`
	PeriodEnd          time.Time          `json:"period_end"`
	TotalSales         decimal.Decimal    `json:"total_sales"`
	CommissionDeducted decimal.Decimal    `json:"commission_deducted"`
	AdjustmentAmount   decimal.Decimal    `json:"adjustment_amount"`
	PayoutAmount       decimal.Decimal    `json:"payout_amount"`
	PaymentCount       int                `json:"payment_count"`
	Status             enums.PayoutStatus `json:"status"`
	AdjustmentNote     *string            `json:"adjustment_note,omitempty"`
	ApprovedBy         *uuid.UUID         `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time         `json:"approved_at,omitempty"`
	PaidAt             *time.Time         `json:"paid_at,omitempty"`
	PayoutReference    *string            `json:"payout_reference,omitempty"`
	RejectionReason    *string            `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// PayoutPageDTO is one page of payouts plus the cursor for the next.
type PayoutPageDTO struct {
	Payouts    []PayoutDTO `json:"payouts"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// PayoutFromModel projects a stored payout into its API shape.
func PayoutFromModel(m *models.VendorPayout) *PayoutDTO {
	if m == nil {
		return nil
	}
	return &PayoutDTO{
		ID:                 m.ID,
		VendorID:           m.VendorID,
		PeriodStart:        m.PeriodStart,
		PeriodEnd:          m.PeriodEnd,
		TotalSales:         m.TotalSales,
		CommissionDeducted: m.CommissionDeducted,
		AdjustmentAmount:   m.AdjustmentAmount,
		PayoutAmount:       m.PayoutAmount,
		PaymentCount:       m.PaymentCount,
		Status:             m.Status,
		AdjustmentNote:     m.AdjustmentNote,
		ApprovedBy:         m.ApprovedBy,
		ApprovedAt:         m.ApprovedAt,
		PaidAt:             m.PaidAt,
		PayoutReference:    m.PayoutReference,
		RejectionReason:    m.RejectionReason,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// PayoutPageFromModels projects one repo page into its API shape.
func PayoutPageFromModels(page *PayoutPage) *PayoutPageDTO {
	if page == nil {
		return &PayoutPageDTO{Payouts: []PayoutDTO{}}
	}
	dto := &PayoutPageDTO{
		Payouts:    make([]PayoutDTO, 0, len(page.Payouts)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Payouts {
		dto.Payouts = append(dto.Payouts, *PayoutFromModel(&page.Payouts[i]))
	}
	return dto
}
