package ordering

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

// MinQtyValidationInput describes the data required to verify a line against
// its part's minimum order quantity.
type MinQtyValidationInput struct {
	PartID      uuid.UUID
	PartName    string
	MinOrderQty int
	Quantity    int
}

// MinQtyViolationDetail exposes the data returned to callers when a line is
// under the part's minimum.
type MinQtyViolationDetail struct {
	PartID       uuid.UUID `json:"part_id"`
	PartName     string    `json:"part_name,omitempty"`
	RequiredQty  int       `json:"required_qty"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateMinOrderQty ensures every provided line meets its part's minimum
// order quantity.
func ValidateMinOrderQty(items []MinQtyValidationInput) error {
	var violations []MinQtyViolationDetail
	for _, item := range items {
		if item.MinOrderQty <= 1 {
			continue
		}
		if item.Quantity < item.MinOrderQty {
			violations = append(violations, MinQtyViolationDetail{
				PartID:       item.PartID,
				PartName:     item.PartName,
				RequiredQty:  item.MinOrderQty,
				RequestedQty: item.Quantity,
			})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("minimum order quantity not met for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
