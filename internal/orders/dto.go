package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// PlaceOrderItemInput is one requested line of a new order.
type PlaceOrderItemInput struct {
	PartID   uuid.UUID
	Quantity int
}

// PlaceOrderInput carries a buyer's order request into placement.
type PlaceOrderInput struct {
	BuyerID uuid.UUID
	Items   []PlaceOrderItemInput
}

// VendorShare is one vendor's slice of a split order: the lines it owns and
// the gross amount those lines sum to.
type VendorShare struct {
	VendorID    uuid.UUID
	Items       []models.OrderItem
	GrossAmount decimal.Decimal
}

// OrderItemDTO is one order line as returned by the API.
type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	PartID    uuid.UUID       `json:"part_id"`
	VendorID  uuid.UUID       `json:"vendor_id"`
	PartName  string          `json:"part_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the API projection of an order.
type OrderDTO struct {
	ID            uuid.UUID                `json:"id"`
	OrderNumber   string                   `json:"order_number"`
	BuyerID       *uuid.UUID               `json:"buyer_id,omitempty"`
	TotalAmount   decimal.Decimal          `json:"total_amount"`
	PaymentStatus enums.OrderPaymentStatus `json:"payment_status"`
	PaidAt        *time.Time               `json:"paid_at,omitempty"`
	Items         []OrderItemDTO           `json:"items"`
	CreatedAt     time.Time                `json:"created_at"`
}

// OrderFromModel projects a stored order into its API shape.
func OrderFromModel(m *models.Order) *OrderDTO {
	if m == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:            m.ID,
		OrderNumber:   m.OrderNumber,
		BuyerID:       m.BuyerID,
		TotalAmount:   m.TotalAmount,
		PaymentStatus: m.PaymentStatus,
		PaidAt:        m.PaidAt,
		Items:         make([]OrderItemDTO, 0, len(m.Items)),
		CreatedAt:     m.CreatedAt,
	}
	for _, item := range m.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:        item.ID,
			PartID:    item.PartID,
			VendorID:  item.VendorID,
			PartName:  item.PartName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return dto
}
