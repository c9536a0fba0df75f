package commission

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
)

// RuleDTO is the API projection of one commission rule.
type RuleDTO struct {
	ID             uuid.UUID       `json:"id"`
	VendorID       *uuid.UUID      `json:"vendor_id,omitempty"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty"`
	RatePercentage decimal.Decimal `json:"rate_percentage"`
	FixedAmount    decimal.Decimal `json:"fixed_amount"`
	EffectiveFrom  time.Time       `json:"effective_from"`
	EffectiveUntil *time.Time      `json:"effective_until,omitempty"`
	IsActive       bool            `json:"is_active"`
	CreatedBy      *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RuleFromModel projects a stored rule into its API shape.
func RuleFromModel(m *models.CommissionRule) *RuleDTO {
	if m == nil {
		return nil
	}
	return &RuleDTO{
		ID:             m.ID,
		VendorID:       m.VendorID,
		CategoryID:     m.CategoryID,
		RatePercentage: m.RatePercentage,
		FixedAmount:    m.FixedAmount,
		EffectiveFrom:  m.EffectiveFrom,
		EffectiveUntil: m.EffectiveUntil,
		IsActive:       m.IsActive,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}

// RulesFromModels projects a rule list into its API shape.
func RulesFromModels(rules []models.CommissionRule) []RuleDTO {
	out := make([]RuleDTO, 0, len(rules))
	for i := range rules {
		out = append(out, *RuleFromModel(&rules[i]))
	}
	return out
}
