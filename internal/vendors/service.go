package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

// Service exposes vendor registry reads plus the orderability gate used at
// order placement.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	EnsureOrderable(ctx context.Context, ids []uuid.UUID) error
}

type service struct {
	repo Repository
}

// BlockedVendorDetail names a vendor that refused an order and why.
type BlockedVendorDetail struct {
	VendorID uuid.UUID          `json:"vendor_id"`
	Status   enums.VendorStatus `json:"status"`
}

// NewService builds a vendors service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	vendor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return vendor, nil
}

// EnsureOrderable verifies every vendor exists and is active. A missing row
// is a broken part attribution, a non-active row is a vendor whose catalog
// is frozen; both block the whole order.
func (s *service) EnsureOrderable(ctx context.Context, ids []uuid.UUID) error {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil
	}

	rows, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendors")
	}
	byID := make(map[uuid.UUID]models.Vendor, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	var missing []uuid.UUID
	var blocked []BlockedVendorDetail
	for _, id := range unique {
		vendor, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if vendor.Status != enums.VendorStatusActive {
			blocked = append(blocked, BlockedVendorDetail{VendorID: vendor.ID, Status: vendor.Status})
		}
	}

	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order references unknown vendor").WithDetails(map[string]any{
			"vendor_ids": missing,
		})
	}
	if len(blocked) > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%d vendor(s) not accepting orders", len(blocked))).WithDetails(map[string]any{
			"vendors": blocked,
		})
	}
	return nil
}
