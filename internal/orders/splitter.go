package orders

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

// Split groups order items by the vendor that owns their part. Share order
// follows the first appearance of each vendor in items, so repeated splits
// of the same order produce the same partition.
//
// Every item must carry a vendor id. One unattributed item invalidates the
// whole partition: money could not be routed for that line, so the order is
// rejected before anything is written.
func Split(items []models.OrderItem) ([]VendorShare, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}

	var unattributed []uuid.UUID
	for _, item := range items {
		if item.VendorID == uuid.Nil {
			unattributed = append(unattributed, item.PartID)
		}
	}
	if len(unattributed) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order partition: %d item(s) missing vendor attribution", len(unattributed))).WithDetails(map[string]any{
			"part_ids": unattributed,
		})
	}

	index := make(map[uuid.UUID]int, len(items))
	shares := make([]VendorShare, 0, len(items))
	for _, item := range items {
		pos, ok := index[item.VendorID]
		if !ok {
			pos = len(shares)
			index[item.VendorID] = pos
			shares = append(shares, VendorShare{
				VendorID:    item.VendorID,
				GrossAmount: decimal.Zero,
			})
		}
		shares[pos].Items = append(shares[pos].Items, item)
		shares[pos].GrossAmount = shares[pos].GrossAmount.Add(item.LineTotal)
	}
	return shares, nil
}
