package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/medcart-backend/internal/orders"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

type stubOrdersService struct {
	orders.Service
	createFn  func(userID uuid.UUID, info orders.DeliveryInfo) (*orders.OrderDTO, error)
	reorderFn func(userID, orderID uuid.UUID) (*orders.ReorderResult, error)
	statusFn  func(change orders.StatusChange) (*orders.OrderDTO, error)
}

func (s stubOrdersService) Create(_ context.Context, userID uuid.UUID, info orders.DeliveryInfo) (*orders.OrderDTO, error) {
	return s.createFn(userID, info)
}

func (s stubOrdersService) Reorder(_ context.Context, userID, orderID uuid.UUID) (*orders.ReorderResult, error) {
	return s.reorderFn(userID, orderID)
}

func (s stubOrdersService) UpdateStatus(_ context.Context, change orders.StatusChange) (*orders.OrderDTO, error) {
	return s.statusFn(change)
}

func TestOrderCheckoutCreatesPendingOrder(t *testing.T) {
	userID := uuid.New()
	svc := stubOrdersService{createFn: func(u uuid.UUID, info orders.DeliveryInfo) (*orders.OrderDTO, error) {
		assert.Equal(t, userID, u)
		assert.Equal(t, enums.PaymentMethodCOD, info.PaymentMethod)
		assert.Equal(t, "12 Main St", info.DeliveryAddress)
		return &orders.OrderDTO{ID: uuid.New(), UserID: u, Status: enums.OrderStatusPending}, nil
	}}

	body := `{"delivery_address":"12 Main St","phone_number":"+1 555-010-9999","payment_method":"cod"}`
	rec := httptest.NewRecorder()
	OrderCheckout(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/orders", body, userID, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var dto orders.OrderDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	assert.Equal(t, enums.OrderStatusPending, dto.Status)
}

func TestOrderCheckoutEmptyCart(t *testing.T) {
	svc := stubOrdersService{createFn: func(uuid.UUID, orders.DeliveryInfo) (*orders.OrderDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}}
	rec := httptest.NewRecorder()
	OrderCheckout(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/orders", `{"payment_method":"card"}`, uuid.New(), nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "EMPTY_CART", env.Error.Code)
}

func TestOrderCheckoutRejectsBadPhone(t *testing.T) {
	svc := stubOrdersService{createFn: func(uuid.UUID, orders.DeliveryInfo) (*orders.OrderDTO, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	rec := httptest.NewRecorder()
	body := `{"delivery_address":"12 Main St","phone_number":"12345","payment_method":"cod"}`
	OrderCheckout(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/orders", body, uuid.New(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderReorderReportsSkipped(t *testing.T) {
	orderID := uuid.New()
	svc := stubOrdersService{reorderFn: func(_ uuid.UUID, id uuid.UUID) (*orders.ReorderResult, error) {
		assert.Equal(t, orderID, id)
		return &orders.ReorderResult{
			SourceOrderID: id,
			Skipped:       []orders.SkippedItem{{ProductID: uuid.New(), ProductName: "Vitamin D3", Reason: "out_of_stock"}},
		}, nil
	}}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/reorder", "", uuid.New(), map[string]string{"orderId": orderID.String()})
	OrderReorder(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result orders.ReorderResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &result))
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "out_of_stock", result.Skipped[0].Reason)
}

func TestAdminOrderStatusParsesStatus(t *testing.T) {
	actorID, orderID := uuid.New(), uuid.New()
	svc := stubOrdersService{statusFn: func(change orders.StatusChange) (*orders.OrderDTO, error) {
		assert.Equal(t, orderID, change.OrderID)
		assert.Equal(t, actorID, change.ActorID)
		assert.Equal(t, enums.OrderStatusShipped, change.Status)
		return &orders.OrderDTO{ID: orderID, Status: change.Status}, nil
	}}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/", `{"status":"shipped","notes":"courier 42"}`, actorID, map[string]string{"orderId": orderID.String()})
	AdminOrderStatus(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = newRequest(http.MethodPatch, "/", `{"status":"teleported"}`, actorID, map[string]string{"orderId": orderID.String()})
	AdminOrderStatus(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminOrderStatusInvalidTransition(t *testing.T) {
	svc := stubOrdersService{statusFn: func(orders.StatusChange) (*orders.OrderDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move delivered to pending")
	}}
	orderID := uuid.New()
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/", `{"status":"pending"}`, uuid.New(), map[string]string{"orderId": orderID.String()})
	AdminOrderStatus(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
