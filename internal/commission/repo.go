package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
)

// Repository exposes persistence helpers for commission rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rule *models.CommissionRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CommissionRule, error)
	FindCandidates(ctx context.Context, vendorID uuid.UUID, categoryID *uuid.UUID, asOf time.Time) ([]models.CommissionRule, error)
	List(ctx context.Context, params listRulesParams) ([]models.CommissionRule, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listRulesParams struct {
	VendorID   *uuid.UUID
	CategoryID *uuid.UUID
	ActiveOnly bool
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rule *models.CommissionRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.CommissionRule, error) {
	var rule models.CommissionRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// FindCandidates loads every rule whose scope could govern the given vendor
// and category and whose effective window contains asOf. Precedence between
// the returned tiers is decided by the service.
func (r *repository) FindCandidates(ctx context.Context, vendorID uuid.UUID, categoryID *uuid.UUID, asOf time.Time) ([]models.CommissionRule, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionRule{}).
		Where("is_active = ?", true).
		Where("effective_from <= ?", asOf).
		Where("(effective_until IS NULL OR effective_until >= ?)", asOf)

	if categoryID != nil {
		query = query.Where(
			"((vendor_id = ? AND category_id = ?) OR (vendor_id = ? AND category_id IS NULL) OR (vendor_id IS NULL AND category_id = ?) OR (vendor_id IS NULL AND category_id IS NULL))",
			vendorID, *categoryID, vendorID, *categoryID,
		)
	} else {
		query = query.Where(
			"((vendor_id = ? AND category_id IS NULL) OR (vendor_id IS NULL AND category_id IS NULL))",
			vendorID,
		)
	}

	var rules []models.CommissionRule
	if err := query.Order("effective_from DESC, created_at DESC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) List(ctx context.Context, params listRulesParams) ([]models.CommissionRule, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionRule{})
	if params.VendorID != nil {
		query = query.Where("vendor_id = ?", *params.VendorID)
	}
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var rules []models.CommissionRule
	if err := query.Order("created_at DESC, id DESC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Deactivate retires a rule without touching its historical applications.
// It reports false when the rule is unknown or already inactive.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionRule{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
