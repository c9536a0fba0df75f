package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partsbay/partsbay-backend/api/middleware"
	"github.com/partsbay/partsbay-backend/api/responses"
	"github.com/partsbay/partsbay-backend/api/validators"
	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/internal/parts"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
)

type vendorStockResponse struct {
	Stock []inventory.StockRowDTO `json:"stock"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// VendorInventory lists stock levels for every part the vendor owns.
func VendorInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		vendorID, err := uuid.Parse(middleware.VendorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing"))
			return
		}

		rows, err := svc.ListVendorStock(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, vendorStockResponse{Stock: inventory.StockRowsFromRows(rows)})
	}
}

// VendorRestock adds stock to one of the vendor's own parts. Other vendors'
// parts answer not-found so part ids cannot be probed.
func VendorRestock(invSvc inventory.Service, partsSvc parts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if invSvc == nil || partsSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		vendorID := middleware.VendorIDFromContext(r.Context())
		if vendorID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing"))
			return
		}

		partID, err := uuid.Parse(chi.URLParam(r, "partID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid part id"))
			return
		}

		var body restockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		part, err := partsSvc.GetByID(r.Context(), partID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if part.VendorID.String() != vendorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "part not found"))
			return
		}

		actorID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		item, err := invSvc.Restock(r.Context(), inventory.RestockInput{
			PartID:      partID,
			Qty:         body.Quantity,
			ActorUserID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, inventory.ItemFromModel(item))
	}
}
