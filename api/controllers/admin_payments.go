package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/api/middleware"
	"github.com/partsbay/partsbay-backend/api/responses"
	"github.com/partsbay/partsbay-backend/api/validators"
	"github.com/partsbay/partsbay-backend/internal/settlement"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
)

type cancelPaymentRequest struct {
	Reason *string `json:"reason"`
}

type refundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason *string          `json:"reason"`
}

// AdminCancelPayment voids a payment that never completed.
func AdminCancelPayment(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, paymentID, err := paymentActionIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := settlement.CancelPaymentInput{
			PaymentID:   paymentID,
			ActorUserID: actorID,
		}
		if r.ContentLength > 0 {
			var body cancelPaymentRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Reason = body.Reason
		}

		payment, err := svc.CancelPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlement.PaymentFromModel(payment))
	}
}

// AdminRefundPayment refunds a completed payment, fully or in part.
func AdminRefundPayment(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, paymentID, err := paymentActionIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := settlement.RefundPaymentInput{
			PaymentID:   paymentID,
			ActorUserID: actorID,
		}
		if r.ContentLength > 0 {
			var body refundPaymentRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Amount = body.Amount
			input.Reason = body.Reason
		}

		payment, err := svc.RefundPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlement.PaymentFromModel(payment))
	}
}

// AdminGetOrderPayments lists every vendor payment carved out of one order.
func AdminGetOrderPayments(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		payments, err := svc.ListOrderPayments(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]settlement.PaymentDTO, 0, len(payments))
		for i := range payments {
			items = append(items, *settlement.PaymentFromModel(&payments[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func paymentActionIdentity(r *http.Request) (actorID, paymentID uuid.UUID, err error) {
	actorID, err = uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	paymentID, err = uuid.Parse(chi.URLParam(r, "paymentID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id")
	}
	return actorID, paymentID, nil
}
