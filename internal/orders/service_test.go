package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/internal/cart"
	product "github.com/angelmondragon/medcart-backend/internal/products"
	"github.com/angelmondragon/medcart-backend/internal/refills"
	"github.com/angelmondragon/medcart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   Service
	cart  cart.Service
	conn  *gorm.DB
	admin uuid.UUID
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	client := dbtest.Client(t)
	clock := func() time.Time { return fixedNow }

	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repo:   cart.NewRepository(client.DB()),
		Tx:     client,
		Policy: pricing.DefaultPolicy(),
		Now:    clock,
	})
	require.NoError(t, err)
	refillSvc, err := refills.NewService(refills.ServiceParams{
		Repo: refills.NewRepository(client.DB()),
		Now:  clock,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(client.DB()),
		Tx:      client,
		Cart:    cartSvc,
		Stock:   product.NewStock(),
		Refills: refillSvc,
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Policy:  pricing.DefaultPolicy(),
		Now:     clock,
	})
	require.NoError(t, err)
	return testEnv{svc: svc, cart: cartSvc, conn: client.DB(), admin: uuid.New()}
}

func (e testEnv) user(t *testing.T, withAddress bool) *models.User {
	t.Helper()
	phone := "9876543210"
	u := &models.User{
		Name:         "Asha Rao",
		Email:        uuid.NewString() + "@example.com",
		Phone:        &phone,
		PasswordHash: "x",
		Role:         enums.UserRoleCustomer,
	}
	if withAddress {
		addr := "12 MG Road, Bengaluru"
		u.Address = &addr
	}
	require.NoError(t, e.conn.Create(u).Error)
	return u
}

func (e testEnv) product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:              name,
		Brand:             "Cipla",
		ProductType:       enums.ProductTypeMedicine,
		Price:             decimal.RequireFromString(price),
		StockQuantity:     stock,
		LowStockThreshold: 2,
		IsActive:          true,
	}
	require.NoError(t, e.conn.Create(p).Error)
	return p
}

func (e testEnv) stockOf(t *testing.T, p *models.Product) int {
	t.Helper()
	var fresh models.Product
	require.NoError(t, e.conn.First(&fresh, "id = ?", p.ID).Error)
	return fresh.StockQuantity
}

func (e testEnv) checkout(t *testing.T, userID uuid.UUID, lines map[*models.Product]int) *OrderDTO {
	t.Helper()
	ctx := context.Background()
	for p, qty := range lines {
		_, err := e.cart.AddItem(ctx, userID, p.ID, qty)
		require.NoError(t, err)
	}
	order, err := e.svc.Create(ctx, userID, DeliveryInfo{PaymentMethod: enums.PaymentMethodCOD})
	require.NoError(t, err)
	return order
}

func (e testEnv) move(t *testing.T, orderID uuid.UUID, statuses ...enums.OrderStatus) {
	t.Helper()
	for _, status := range statuses {
		_, err := e.svc.UpdateStatus(context.Background(), StatusChange{OrderID: orderID, Status: status, ActorID: e.admin})
		require.NoError(t, err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateSnapshotsItemsAndClearsCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, true)
	a := env.product(t, "Pantoprazole 40mg", "175.00", 10)
	b := env.product(t, "Cetirizine 10mg", "87.50", 5)

	order := env.checkout(t, u.ID, map[*models.Product]int{a: 2, b: 1})

	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, "437.5", order.Subtotal.String())
	require.Equal(t, "21.88", order.Tax.StringFixed(2))
	require.Equal(t, "50.00", order.DeliveryFee.StringFixed(2))
	require.Equal(t, "509.38", order.Total.StringFixed(2))
	require.Equal(t, "12 MG Road, Bengaluru", order.DeliveryAddress)
	require.Equal(t, "9876543210", order.PhoneNumber)
	require.Len(t, order.Items, 2)
	require.Equal(t, 3, order.TotalItems)

	view, err := env.cart.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, view.Items)

	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", a.ID).Update("price", "199.00").Error)
	reloaded, err := env.svc.Get(ctx, u.ID, order.ID)
	require.NoError(t, err)
	for _, item := range reloaded.Items {
		if item.ProductID == a.ID {
			require.Equal(t, "175.00", item.UnitPrice.StringFixed(2))
			require.Equal(t, "Pantoprazole 40mg", item.ProductName)
		}
	}
	require.Len(t, reloaded.History, 1)
	require.Nil(t, reloaded.History[0].FromStatus)

	// cart orders leave stock untouched until they ship
	require.Equal(t, 10, env.stockOf(t, a))

	var events int64
	require.NoError(t, env.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	require.EqualValues(t, 1, events)

	var suggestions int64
	require.NoError(t, env.conn.Model(&models.RefillSuggestion{}).Where("user_id = ?", u.ID).Count(&suggestions).Error)
	require.EqualValues(t, 2, suggestions)
}

func TestCreateWithEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, true)

	_, err := env.svc.Create(context.Background(), u.ID, DeliveryInfo{PaymentMethod: enums.PaymentMethodUPI})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart))
}

func TestCreateRequiresAnAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, false)
	p := env.product(t, "Dolo 650", "30.00", 10)
	_, err := env.cart.AddItem(ctx, u.ID, p.ID, 1)
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, u.ID, DeliveryInfo{PaymentMethod: enums.PaymentMethodCOD})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	view, err := env.cart.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
}

func TestCreateRejectsStockDrainedAfterAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, true)
	p := env.product(t, "Dolo 650", "30.00", 3)
	_, err := env.cart.AddItem(ctx, u.ID, p.ID, 3)
	require.NoError(t, err)
	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("reserved_quantity", 2).Error)

	_, err = env.svc.Create(ctx, u.ID, DeliveryInfo{PaymentMethod: enums.PaymentMethodCOD})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	var orders int64
	require.NoError(t, env.conn.Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
}

func TestStatusMachineAndStockCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, true)
	a := env.product(t, "Pantoprazole 40mg", "175.00", 10)
	order := env.checkout(t, u.ID, map[*models.Product]int{a: 2})

	env.move(t, order.ID, enums.OrderStatusApproved, enums.OrderStatusShipped)
	require.Equal(t, 8, env.stockOf(t, a))

	_, err := env.svc.UpdateStatus(ctx, StatusChange{OrderID: order.ID, Status: enums.OrderStatusCancelled, ActorID: env.admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	env.move(t, order.ID, enums.OrderStatusDelivered)
	_, err = env.svc.UpdateStatus(ctx, StatusChange{OrderID: order.ID, Status: enums.OrderStatusPending, ActorID: env.admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	final, err := env.svc.GetAny(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, final.Status)
	require.NotNil(t, final.DeliveredAt)
	require.True(t, final.CanReorder)
	require.Empty(t, final.AllowedTransitions)
	require.Len(t, final.History, 4)
	require.Equal(t, 8, env.stockOf(t, a))

	ok, err := env.svc.HasDeliveredPurchase(ctx, u.ID, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCancelPendingLeavesStock(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, true)
	a := env.product(t, "Azithromycin 500mg", "120.00", 4)
	order := env.checkout(t, u.ID, map[*models.Product]int{a: 1})

	env.move(t, order.ID, enums.OrderStatusCancelled)
	require.Equal(t, 4, env.stockOf(t, a))

	ok, err := env.svc.HasDeliveredPurchase(context.Background(), u.ID, a.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubscriptionOrderRestocksOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, true)
	p := env.product(t, "Metformin 500mg", "60.00", 10)
	sub := &models.Subscription{
		UserID:       u.ID,
		ProductID:    p.ID,
		Frequency:    enums.FrequencyMonthly,
		Quantity:     2,
		NextDelivery: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		IsActive:     true,
	}
	require.NoError(t, env.conn.Create(sub).Error)

	var order *models.Order
	err := env.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = env.svc.CreateFromSubscription(ctx, tx, sub)
		if err != nil {
			return err
		}
		return product.NewStock().DecrementOnFulfillment(ctx, tx, p.ID, sub.Quantity, false)
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentMethodSubscription, order.PaymentMethod)
	require.Equal(t, sub.ID, *order.SubscriptionID)
	require.Equal(t, "120.00", order.Subtotal.StringFixed(2))
	require.Equal(t, "176.00", order.Total.StringFixed(2))
	require.Equal(t, 8, env.stockOf(t, p))

	env.move(t, order.ID, enums.OrderStatusApproved, enums.OrderStatusCancelled)
	require.Equal(t, 10, env.stockOf(t, p))

	var committed int64
	require.NoError(t, env.conn.Model(&models.OrderItem{}).
		Where("order_id = ? AND stock_committed = ?", order.ID, true).Count(&committed).Error)
	require.Zero(t, committed)
}

func TestCreateFromSubscriptionRejectsInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, true)
	p := env.product(t, "Metformin 500mg", "60.00", 10)
	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)
	sub := &models.Subscription{UserID: u.ID, ProductID: p.ID, Frequency: enums.FrequencyWeekly, Quantity: 1, NextDelivery: fixedNow, IsActive: true}

	_, err := env.svc.CreateFromSubscription(context.Background(), env.conn, sub)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReorderSkipsUnavailableItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, true)
	a := env.product(t, "Pantoprazole 40mg", "175.00", 10)
	b := env.product(t, "Cetirizine 10mg", "87.50", 5)
	order := env.checkout(t, u.ID, map[*models.Product]int{a: 2, b: 1})

	_, err := env.svc.Reorder(ctx, u.ID, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	env.move(t, order.ID, enums.OrderStatusApproved, enums.OrderStatusShipped, enums.OrderStatusDelivered)
	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", b.ID).Update("is_active", false).Error)

	result, err := env.svc.Reorder(ctx, u.ID, order.ID)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Equal(t, a.ID, result.Added[0].ProductID)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, b.ID, result.Skipped[0].ProductID)
	require.Equal(t, cart.ReasonInactive, result.Skipped[0].Reason)
	require.Len(t, result.Cart.Items, 1)
	require.Equal(t, 2, result.Cart.Items[0].Quantity)
}

func TestReorderOtherUsersOrder(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, true)
	other := env.user(t, true)
	a := env.product(t, "Dolo 650", "30.00", 10)
	order := env.checkout(t, owner.ID, map[*models.Product]int{a: 1})

	_, err := env.svc.Reorder(context.Background(), other.ID, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestEditRestrictsDeliveryFieldsAfterShipping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, true)
	a := env.product(t, "Dolo 650", "30.00", 10)
	order := env.checkout(t, u.ID, map[*models.Product]int{a: 1})

	addr := "4 Park Street, Kolkata"
	edited, err := env.svc.Edit(ctx, order.ID, OrderEdit{DeliveryAddress: &addr})
	require.NoError(t, err)
	require.Equal(t, addr, edited.DeliveryAddress)

	_, err = env.svc.Edit(ctx, order.ID, OrderEdit{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	env.move(t, order.ID, enums.OrderStatusApproved, enums.OrderStatusShipped)
	phone := "9123456780"
	_, err = env.svc.Edit(ctx, order.ID, OrderEdit{PhoneNumber: &phone})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	notes := "leave with security"
	edited, err = env.svc.Edit(ctx, order.ID, OrderEdit{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, notes, *edited.Notes)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, true)
	a := env.product(t, "Dolo 650", "30.00", 50)
	for range 3 {
		env.checkout(t, u.ID, map[*models.Product]int{a: 1})
	}

	status := enums.OrderStatusPending
	all, err := env.svc.ListAll(ctx, &status, pagination.Params{Limit: 10, Cursor: ""})
	require.NoError(t, err)
	require.Len(t, all.Orders, 3)

	first, err := env.svc.List(ctx, u.ID, pagination.Params{Limit: 2, Cursor: ""})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := env.svc.List(ctx, u.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	require.Empty(t, second.NextCursor)
}
