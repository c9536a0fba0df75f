package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
)

// StockRowDTO is one catalog line of a vendor's stock view.
type StockRowDTO struct {
	PartID       uuid.UUID `json:"part_id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	SafetyStock  int       `json:"safety_stock"`
	ReorderPoint int       `json:"reorder_point"`
}

// ItemDTO is the API projection of one inventory counter.
type ItemDTO struct {
	PartID       uuid.UUID `json:"part_id"`
	Quantity     int       `json:"quantity"`
	SafetyStock  int       `json:"safety_stock"`
	ReorderPoint int       `json:"reorder_point"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StockRowsFromRows projects the vendor stock query into its API shape.
func StockRowsFromRows(rows []VendorStockRow) []StockRowDTO {
	out := make([]StockRowDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, StockRowDTO{
			PartID:       row.PartID,
			SKU:          row.SKU,
			Name:         row.Name,
			Quantity:     row.Quantity,
			SafetyStock:  row.SafetyStock,
			ReorderPoint: row.ReorderPoint,
		})
	}
	return out
}

// ItemFromModel projects a stored inventory item into its API shape.
func ItemFromModel(m *models.InventoryItem) *ItemDTO {
	if m == nil {
		return nil
	}
	return &ItemDTO{
		PartID:       m.PartID,
		Quantity:     m.Quantity,
		SafetyStock:  m.SafetyStock,
		ReorderPoint: m.ReorderPoint,
		UpdatedAt:    m.UpdatedAt,
	}
}
