package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/api/middleware"
	"github.com/partsbay/partsbay-backend/internal/orders"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
)

type stubOrdersService struct {
	place func(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error)
	get   func(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func (s *stubOrdersService) Place(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error) {
	if s.place != nil {
		return s.place(ctx, input)
	}
	return nil, nil
}

func (s *stubOrdersService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, nil
}

func orderFixture(buyerID uuid.UUID, vendorIDs ...uuid.UUID) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20250801-000042",
		BuyerID:       &buyerID,
		TotalAmount:   decimal.RequireFromString("149.97"),
		PaymentStatus: enums.OrderPaymentStatusPending,
	}
	for _, vendorID := range vendorIDs {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			PartID:    uuid.New(),
			VendorID:  vendorID,
			PartName:  "Brake Pad Set",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("49.99"),
			LineTotal: decimal.RequireFromString("49.99"),
		})
	}
	return order
}

func getOrderRequest(order *models.Order) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID.String(), nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderID", order.ID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestPlaceOrderCreatesOrder(t *testing.T) {
	buyerID := uuid.New()
	partID := uuid.New()
	svc := &stubOrdersService{
		place: func(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error) {
			if input.BuyerID != buyerID {
				t.Fatalf("unexpected buyer %s", input.BuyerID)
			}
			if len(input.Items) != 1 || input.Items[0].PartID != partID || input.Items[0].Quantity != 3 {
				t.Fatalf("unexpected items %+v", input.Items)
			}
			return orderFixture(buyerID, uuid.New()), nil
		},
	}

	handler := PlaceOrder(svc, nil)
	body := fmt.Sprintf(`{"items":[{"part_id":"%s","quantity":3}]}`, partID)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), buyerID.String()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleBuyer)))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data orders.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderNumber != "ORD-20250801-000042" {
		t.Fatalf("unexpected order number %q", envelope.Data.OrderNumber)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected 1 item got %d", len(envelope.Data.Items))
	}
}

func TestPlaceOrderRejectsEmptyItems(t *testing.T) {
	called := false
	svc := &stubOrdersService{
		place: func(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error) {
			called = true
			return nil, nil
		},
	}

	handler := PlaceOrder(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[]}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatalf("service called with empty items")
	}
}

func TestPlaceOrderRequiresUserContext(t *testing.T) {
	handler := PlaceOrder(&stubOrdersService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[{"part_id":"`+uuid.NewString()+`","quantity":1}]}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestGetOrderHidesOtherBuyersOrders(t *testing.T) {
	owner := uuid.New()
	order := orderFixture(owner, uuid.New())
	svc := &stubOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return order, nil
		},
	}

	handler := GetOrder(svc, nil)
	req := getOrderRequest(order)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleBuyer)))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestGetOrderReturnsOwnOrder(t *testing.T) {
	owner := uuid.New()
	order := orderFixture(owner, uuid.New())
	svc := &stubOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			if id != order.ID {
				t.Fatalf("unexpected order id %s", id)
			}
			return order, nil
		},
	}

	handler := GetOrder(svc, nil)
	req := getOrderRequest(order)
	req = req.WithContext(middleware.WithUserID(req.Context(), owner.String()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleBuyer)))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data orders.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != order.ID {
		t.Fatalf("unexpected order %s", envelope.Data.ID)
	}
}

func TestGetOrderVendorSeesOrdersWithOwnLines(t *testing.T) {
	vendorID := uuid.New()
	order := orderFixture(uuid.New(), vendorID, uuid.New())
	svc := &stubOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return order, nil
		},
	}

	handler := GetOrder(svc, nil)
	req := getOrderRequest(order)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleVendor)))
	req = req.WithContext(middleware.WithVendorID(req.Context(), vendorID.String()))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGetOrderVendorWithoutLinesGetsNotFound(t *testing.T) {
	order := orderFixture(uuid.New(), uuid.New())
	svc := &stubOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return order, nil
		},
	}

	handler := GetOrder(svc, nil)
	req := getOrderRequest(order)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleVendor)))
	req = req.WithContext(middleware.WithVendorID(req.Context(), uuid.NewString()))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestGetOrderOperatorSeesEverything(t *testing.T) {
	order := orderFixture(uuid.New(), uuid.New())
	svc := &stubOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return order, nil
		},
	}

	handler := GetOrder(svc, nil)
	req := getOrderRequest(order)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleOperator)))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
