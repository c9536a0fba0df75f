package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partsbay/partsbay-backend/api/middleware"
	"github.com/partsbay/partsbay-backend/api/responses"
	"github.com/partsbay/partsbay-backend/api/validators"
	"github.com/partsbay/partsbay-backend/internal/orders"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
)

type placeOrderItem struct {
	PartID   uuid.UUID `json:"part_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

type placeOrderRequest struct {
	Items []placeOrderItem `json:"items" validate:"required,min=1,max=100,dive"`
}

// PlaceOrder accepts a multi-vendor order for the authenticated buyer.
func PlaceOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body placeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.PlaceOrderInput{
			BuyerID: buyerID,
			Items:   make([]orders.PlaceOrderItemInput, 0, len(body.Items)),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, orders.PlaceOrderItemInput{
				PartID:   item.PartID,
				Quantity: item.Quantity,
			})
		}

		order, err := svc.Place(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orders.OrderFromModel(order))
	}
}

// GetOrder returns one order. Buyers see only their own orders; operators
// see all of them.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !orderVisibleTo(r, order) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccess(w, orders.OrderFromModel(order))
	}
}

// orderVisibleTo hides other parties' orders behind a not-found rather than
// confirming their existence with a 403. Operators see everything, buyers
// their own orders, vendors any order carrying one of their lines.
func orderVisibleTo(r *http.Request, order *models.Order) bool {
	ctx := r.Context()
	switch middleware.RoleFromContext(ctx) {
	case string(enums.UserRoleOperator):
		return true
	case string(enums.UserRoleVendor):
		vendorID := middleware.VendorIDFromContext(ctx)
		for _, item := range order.Items {
			if item.VendorID.String() == vendorID {
				return true
			}
		}
		return false
	default:
		return order.BuyerID != nil && order.BuyerID.String() == middleware.UserIDFromContext(ctx)
	}
}
