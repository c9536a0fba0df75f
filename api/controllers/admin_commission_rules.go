package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/api/middleware"
	"github.com/partsbay/partsbay-backend/api/responses"
	"github.com/partsbay/partsbay-backend/api/validators"
	"github.com/partsbay/partsbay-backend/internal/commission"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
)

type createCommissionRuleRequest struct {
	VendorID       *uuid.UUID      `json:"vendor_id"`
	CategoryID     *uuid.UUID      `json:"category_id"`
	RatePercentage decimal.Decimal `json:"rate_percentage" validate:"required"`
	FixedAmount    decimal.Decimal `json:"fixed_amount"`
	EffectiveFrom  *time.Time      `json:"effective_from"`
	EffectiveUntil *time.Time      `json:"effective_until"`
}

type commissionRulesResponse struct {
	Rules []commission.RuleDTO `json:"rules"`
}

// AdminListCommissionRules lists rate rules, optionally filtered by scope.
func AdminListCommissionRules(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		var input commission.ListRulesInput

		if raw := strings.TrimSpace(r.URL.Query().Get("vendor_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor id"))
				return
			}
			input.VendorID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id"))
				return
			}
			input.CategoryID = &id
		}
		input.ActiveOnly = strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("active")), "true")

		rules, err := svc.ListRules(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, commissionRulesResponse{Rules: commission.RulesFromModels(rules)})
	}
}

// AdminCreateCommissionRule inserts a new rate rule.
func AdminCreateCommissionRule(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		actorID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body createCommissionRuleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := commission.CreateRuleInput{
			VendorID:       body.VendorID,
			CategoryID:     body.CategoryID,
			RatePercentage: body.RatePercentage,
			FixedAmount:    body.FixedAmount,
			EffectiveFrom:  time.Now().UTC(),
			EffectiveUntil: body.EffectiveUntil,
			ActorUserID:    actorID,
		}
		if body.EffectiveFrom != nil {
			input.EffectiveFrom = *body.EffectiveFrom
		}

		rule, err := svc.CreateRule(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, commission.RuleFromModel(rule))
	}
}

// AdminDeactivateCommissionRule retires a rule without deleting it.
func AdminDeactivateCommissionRule(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		actorID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rule id"))
			return
		}

		rule, err := svc.DeactivateRule(r.Context(), commission.DeactivateRuleInput{
			RuleID:      ruleID,
			ActorUserID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, commission.RuleFromModel(rule))
	}
}
