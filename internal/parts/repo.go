package parts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
)

// Repository reads the parts catalog. The settlement engine never mutates
// parts; rows arrive via migrations and vendor tooling elsewhere.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Part, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Part, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Part, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a parts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).First(&part, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Part, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var parts []models.Part
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Part, error) {
	var parts []models.Part
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("name ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}
