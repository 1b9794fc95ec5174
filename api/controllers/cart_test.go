package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/medcart-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
)

type stubCartService struct {
	cart.Service
	addFn    func(userID, productID uuid.UUID, qty int) (*cart.View, error)
	updateFn func(userID, itemID uuid.UUID, qty int) (*cart.View, error)
	getFn    func(userID uuid.UUID) (*cart.View, error)
}

func (s stubCartService) AddItem(_ context.Context, userID, productID uuid.UUID, qty int) (*cart.View, error) {
	return s.addFn(userID, productID, qty)
}

func (s stubCartService) UpdateItem(_ context.Context, userID, itemID uuid.UUID, qty int) (*cart.View, error) {
	return s.updateFn(userID, itemID, qty)
}

func (s stubCartService) Get(_ context.Context, userID uuid.UUID) (*cart.View, error) {
	return s.getFn(userID)
}

func pricedView(subtotal string) *cart.View {
	return &cart.View{Items: []cart.LineDTO{}, Totals: pricing.DefaultPolicy().Compute(decimal.RequireFromString(subtotal))}
}

func TestCartAddItemPassesCallerAndQuantity(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	var gotUser, gotProduct uuid.UUID
	var gotQty int
	svc := stubCartService{addFn: func(u, p uuid.UUID, qty int) (*cart.View, error) {
		gotUser, gotProduct, gotQty = u, p, qty
		return pricedView("100.00"), nil
	}}

	body := `{"product_id":"` + productID.String() + `","quantity":2}`
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/cart/items", body, userID, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, productID, gotProduct)
	assert.Equal(t, 2, gotQty)

	var view struct {
		Tax         decimal.Decimal `json:"tax"`
		DeliveryFee decimal.Decimal `json:"delivery_fee"`
		Total       decimal.Decimal `json:"total"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
	assert.True(t, view.Tax.Equal(decimal.RequireFromString("5.00")), view.Tax.String())
	assert.True(t, view.DeliveryFee.Equal(decimal.RequireFromString("50.00")), view.DeliveryFee.String())
	assert.True(t, view.Total.Equal(decimal.RequireFromString("155.00")), view.Total.String())
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	svc := stubCartService{addFn: func(uuid.UUID, uuid.UUID, int) (*cart.View, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New(), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartAddItemSurfacesInsufficientStock(t *testing.T) {
	svc := stubCartService{addFn: func(uuid.UUID, uuid.UUID, int) (*cart.View, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "only 3 units available")
	}}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":9}`
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New(), nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), env.Error.Code)
	assert.Equal(t, "only 3 units available", env.Error.Message)
}

func TestCartUpdateItemAllowsZeroToRemove(t *testing.T) {
	itemID := uuid.New()
	gotQty := -1
	svc := stubCartService{updateFn: func(_ uuid.UUID, id uuid.UUID, qty int) (*cart.View, error) {
		assert.Equal(t, itemID, id)
		gotQty = qty
		return pricedView("0"), nil
	}}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/api/v1/cart/items/"+itemID.String(), `{"quantity":0}`, uuid.New(), map[string]string{"itemId": itemID.String()})
	CartUpdateItem(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, gotQty)
}

func TestCartFetchRequiresUser(t *testing.T) {
	svc := stubCartService{getFn: func(uuid.UUID) (*cart.View, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	rec := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/cart", "", uuid.Nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartNilServiceIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	CartFetch(nil, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/cart", "", uuid.New(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
