package commission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/internal/audit"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditEvent, error)
}

// Service resolves the commission rate for a vendor sale and administers
// the rule table.
type Service interface {
	Resolve(ctx context.Context, input ResolveInput) (*ResolvedRate, error)
	CreateRule(ctx context.Context, input CreateRuleInput) (*models.CommissionRule, error)
	ListRules(ctx context.Context, input ListRulesInput) ([]models.CommissionRule, error)
	DeactivateRule(ctx context.Context, input DeactivateRuleInput) (*models.CommissionRule, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	audit auditRecorder
	logg  *logger.Logger
}

// RateSource names the rule scope a resolution came from.
type RateSource string

const (
	RateSourceVendorCategory RateSource = "vendor_category"
	RateSourceVendor         RateSource = "vendor"
	RateSourceCategory       RateSource = "category"
	RateSourcePlatform       RateSource = "platform"
	// RateSourceZeroFallback marks sales that settled with no commission
	// because no rule covered them.
	RateSourceZeroFallback RateSource = "zero_fallback"
)

// ResolveInput identifies the sale a rate is needed for. AsOf anchors the
// effective-window check to the order's placement time so replays resolve
// identically.
type ResolveInput struct {
	VendorID   uuid.UUID
	CategoryID *uuid.UUID
	AsOf       time.Time
}

// ResolvedRate is the outcome of a resolution, ready to apply to a line total.
type ResolvedRate struct {
	RuleID         *uuid.UUID
	RatePercentage decimal.Decimal
	FixedAmount    decimal.Decimal
	Source         RateSource
}

// Apply computes the commission owed on lineTotal. The result is rounded to
// cents and clamped to [0, lineTotal] so a misconfigured rule can never
// produce a negative vendor share.
func (r ResolvedRate) Apply(lineTotal decimal.Decimal) decimal.Decimal {
	commission := lineTotal.
		Mul(r.RatePercentage).
		Div(decimal.NewFromInt(100)).
		Add(r.FixedAmount).
		Round(2)
	if commission.IsNegative() {
		return decimal.Zero
	}
	if commission.GreaterThan(lineTotal) {
		return lineTotal
	}
	return commission
}

// CreateRuleInput carries a new commission rule. Leaving VendorID or
// CategoryID nil widens the rule's scope up to the platform default.
type CreateRuleInput struct {
	VendorID       *uuid.UUID
	CategoryID     *uuid.UUID
	RatePercentage decimal.Decimal
	FixedAmount    decimal.Decimal
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	ActorUserID    uuid.UUID
}

// ListRulesInput filters the rule table.
type ListRulesInput struct {
	VendorID   *uuid.UUID
	CategoryID *uuid.UUID
	ActiveOnly bool
}

// DeactivateRuleInput retires a rule.
type DeactivateRuleInput struct {
	RuleID      uuid.UUID
	ActorUserID uuid.UUID
}

type ruleAuditMetadata struct {
	VendorID       *uuid.UUID `json:"vendor_id,omitempty"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	RatePercentage string     `json:"rate_percentage"`
	FixedAmount    string     `json:"fixed_amount"`
}

// NewService builds the commission service.
func NewService(repo Repository, tx txRunner, auditSvc auditRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, audit: auditSvc, logg: logg}, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*ResolvedRate, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	candidates, err := s.repo.FindCandidates(ctx, input.VendorID, input.CategoryID, asOf)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission candidates")
	}

	if len(candidates) == 0 {
		fields := map[string]any{"vendor_id": input.VendorID.String()}
		if input.CategoryID != nil {
			fields["category_id"] = input.CategoryID.String()
		}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "no commission rule matched, settling sale with zero commission")
		return &ResolvedRate{
			RatePercentage: decimal.Zero,
			FixedAmount:    decimal.Zero,
			Source:         RateSourceZeroFallback,
		}, nil
	}

	// Candidates arrive newest effective_from first, so the first rule seen
	// in the strongest tier is the one that wins ties within that tier.
	var best *models.CommissionRule
	bestTier := len(tierSources)
	for i := range candidates {
		tier := scopeTier(&candidates[i])
		if tier < bestTier {
			bestTier = tier
			best = &candidates[i]
		}
	}

	ruleID := best.ID
	return &ResolvedRate{
		RuleID:         &ruleID,
		RatePercentage: best.RatePercentage,
		FixedAmount:    best.FixedAmount,
		Source:         tierSources[bestTier],
	}, nil
}

func (s *service) CreateRule(ctx context.Context, input CreateRuleInput) (*models.CommissionRule, error) {
	if err := validateCreateRule(input); err != nil {
		return nil, err
	}

	rule := &models.CommissionRule{
		VendorID:       input.VendorID,
		CategoryID:     input.CategoryID,
		RatePercentage: input.RatePercentage,
		FixedAmount:    input.FixedAmount,
		EffectiveFrom:  input.EffectiveFrom.UTC(),
		IsActive:       true,
		CreatedBy:      &input.ActorUserID,
	}
	if input.EffectiveUntil != nil {
		until := input.EffectiveUntil.UTC()
		rule.EffectiveUntil = &until
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, rule); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission rule")
		}

		metadata, err := json.Marshal(ruleAuditMetadata{
			VendorID:       rule.VendorID,
			CategoryID:     rule.CategoryID,
			RatePercentage: rule.RatePercentage.String(),
			FixedAmount:    rule.FixedAmount.String(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode rule metadata")
		}
		_, err = s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditCommissionRuleCreated,
			EntityType: audit.EntityCommissionRule,
			EntityID:   rule.ID,
			Actor:      &audit.Actor{UserID: input.ActorUserID, Role: "operator"},
			Metadata:   metadata,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, input ListRulesInput) ([]models.CommissionRule, error) {
	rules, err := s.repo.List(ctx, listRulesParams{
		VendorID:   input.VendorID,
		CategoryID: input.CategoryID,
		ActiveOnly: input.ActiveOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commission rules")
	}
	return rules, nil
}

func (s *service) DeactivateRule(ctx context.Context, input DeactivateRuleInput) (*models.CommissionRule, error) {
	if input.RuleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rule id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var rule *models.CommissionRule
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.GetByID(ctx, input.RuleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "commission rule not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rule")
		}
		if !loaded.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission rule already inactive")
		}

		ok, err := repo.Deactivate(ctx, input.RuleID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate commission rule")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission rule already inactive")
		}
		loaded.IsActive = false
		rule = loaded

		_, err = s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditCommissionRuleDeactivated,
			EntityType: audit.EntityCommissionRule,
			EntityID:   loaded.ID,
			Actor:      &audit.Actor{UserID: input.ActorUserID, Role: "operator"},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

var tierSources = []RateSource{
	RateSourceVendorCategory,
	RateSourceVendor,
	RateSourceCategory,
	RateSourcePlatform,
}

func scopeTier(rule *models.CommissionRule) int {
	switch {
	case rule.VendorID != nil && rule.CategoryID != nil:
		return 0
	case rule.VendorID != nil:
		return 1
	case rule.CategoryID != nil:
		return 2
	default:
		return 3
	}
}

var oneHundred = decimal.NewFromInt(100)

func validateCreateRule(input CreateRuleInput) error {
	if input.RatePercentage.IsNegative() || input.RatePercentage.GreaterThan(oneHundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "rate percentage must be between 0 and 100")
	}
	if input.FixedAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "fixed amount must not be negative")
	}
	if input.EffectiveFrom.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "effective from required")
	}
	if input.EffectiveUntil != nil && !input.EffectiveUntil.After(input.EffectiveFrom) {
		return pkgerrors.New(pkgerrors.CodeValidation, "effective until must be after effective from")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}
