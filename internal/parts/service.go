package parts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

// Service exposes the catalog lookups order placement and the vendor portal
// rely on.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Part, error)
	ListVendorParts(ctx context.Context, vendorID uuid.UUID) ([]models.Part, error)
}

type service struct {
	repo Repository
}

// NewService builds a parts service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("parts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	part, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part")
	}
	return part, nil
}

// GetByIDs loads the requested parts in a single query. Duplicate ids are
// collapsed; callers detect missing parts by probing the returned map.
func (s *service) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Part, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	rows, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parts")
	}
	byID := make(map[uuid.UUID]models.Part, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

func (s *service) ListVendorParts(ctx context.Context, vendorID uuid.UUID) ([]models.Part, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	rows, err := s.repo.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor parts")
	}
	return rows, nil
}
