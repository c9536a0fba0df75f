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
	"github.com/partsbay/partsbay-backend/internal/payouts"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/pagination"
)

type aggregatePayoutRequest struct {
	VendorID    uuid.UUID `json:"vendor_id" validate:"required"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
}

type payoutActionRequest struct {
	Reason *string `json:"reason"`
}

type markPaidRequest struct {
	PayoutReference string `json:"payout_reference" validate:"required"`
}

type rejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type payoutAdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Note   *string         `json:"note"`
}

// AdminAggregatePayout recomputes one vendor's payout for a period on demand.
func AdminAggregatePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		var body aggregatePayoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Aggregate(r.Context(), payouts.AggregateInput{
			VendorID:    body.VendorID,
			PeriodStart: body.PeriodStart,
			PeriodEnd:   body.PeriodEnd,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payouts.PayoutFromModel(payout))
	}
}

// AdminListPayouts lists payouts across vendors with optional filters.
func AdminListPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payouts.ListPayoutsInput{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("vendor_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor id"))
				return
			}
			input.VendorID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePayoutStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}

		page, err := svc.ListPayouts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payouts.PayoutPageFromModels(page))
	}
}

// AdminApprovePayout moves a payout to approved.
func AdminApprovePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutTransitionHandler(svc, logg, func(r *http.Request, input payouts.OperatorActionInput) (*models.VendorPayout, error) {
		return svc.Approve(r.Context(), input)
	})
}

// AdminHoldPayout parks a payout pending review.
func AdminHoldPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutTransitionHandler(svc, logg, func(r *http.Request, input payouts.OperatorActionInput) (*models.VendorPayout, error) {
		return svc.Hold(r.Context(), input)
	})
}

// AdminProcessPayout marks an approved payout as being disbursed.
func AdminProcessPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutTransitionHandler(svc, logg, func(r *http.Request, input payouts.OperatorActionInput) (*models.VendorPayout, error) {
		return svc.BeginProcessing(r.Context(), input)
	})
}

// AdminMarkPayoutPaid records that funds left the platform.
func AdminMarkPayoutPaid(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actorID, payoutID, err := payoutActionIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body markPaidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.MarkPaid(r.Context(), payouts.MarkPaidInput{
			PayoutID:        payoutID,
			ActorUserID:     actorID,
			PayoutReference: body.PayoutReference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payouts.PayoutFromModel(payout))
	}
}

// AdminRejectPayout declines a payout with a mandatory reason.
func AdminRejectPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actorID, payoutID, err := payoutActionIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rejectPayoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Reject(r.Context(), payouts.RejectInput{
			PayoutID:    payoutID,
			ActorUserID: actorID,
			Reason:      body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payouts.PayoutFromModel(payout))
	}
}

// AdminSetPayoutAdjustment applies a manual correction to an open payout.
func AdminSetPayoutAdjustment(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actorID, payoutID, err := payoutActionIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body payoutAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var note *string
		if body.Note != nil {
			trimmed := validators.SanitizeString(*body.Note, 500)
			note = &trimmed
		}

		payout, err := svc.SetAdjustment(r.Context(), payouts.AdjustmentInput{
			PayoutID:    payoutID,
			Amount:      body.Amount,
			Note:        note,
			ActorUserID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payouts.PayoutFromModel(payout))
	}
}

func payoutActionIdentity(r *http.Request) (actorID, payoutID uuid.UUID, err error) {
	actorID, err = uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	payoutID, err = uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id")
	}
	return actorID, payoutID, nil
}

func payoutTransitionHandler(svc payouts.Service, logg *logger.Logger, run func(r *http.Request, input payouts.OperatorActionInput) (*models.VendorPayout, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actorID, payoutID, err := payoutActionIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payouts.OperatorActionInput{
			PayoutID:    payoutID,
			ActorUserID: actorID,
		}
		if r.ContentLength > 0 {
			var body payoutActionRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Reason = body.Reason
		}

		payout, err := run(r, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payouts.PayoutFromModel(payout))
	}
}
