package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/internal/cart"
	"github.com/angelmondragon/medcart-backend/internal/orders"
	product "github.com/angelmondragon/medcart-backend/internal/products"
	"github.com/angelmondragon/medcart-backend/internal/refills"
	"github.com/angelmondragon/medcart-backend/internal/subscriptions"
	"github.com/angelmondragon/medcart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
)

var deliveryDay = time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC)

type outcomeRecorder map[string]int

func (o outcomeRecorder) SubscriptionDelivery(outcome string) { o[outcome]++ }

type deliveryEnv struct {
	conn     *gorm.DB
	subs     subscriptions.Service
	job      Job
	outcomes outcomeRecorder
}

func newDeliveryEnv(t *testing.T) deliveryEnv {
	t.Helper()
	client := dbtest.Client(t)
	clock := func() time.Time { return deliveryDay }
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	stock := product.NewStock()

	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   subscriptions.NewRepository(client.DB()),
		Tx:     client,
		Stock:  stock,
		Outbox: emitter,
		Now:    clock,
	})
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repo:   cart.NewRepository(client.DB()),
		Tx:     client,
		Policy: pricing.DefaultPolicy(),
		Now:    clock,
	})
	require.NoError(t, err)
	refillSvc, err := refills.NewService(refills.ServiceParams{Repo: refills.NewRepository(client.DB()), Now: clock})
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(client.DB()),
		Tx:      client,
		Cart:    cartSvc,
		Stock:   stock,
		Refills: refillSvc,
		Outbox:  emitter,
		Policy:  pricing.DefaultPolicy(),
		Now:     clock,
	})
	require.NoError(t, err)

	outcomes := outcomeRecorder{}
	job, err := NewSubscriptionDeliveryJob(SubscriptionDeliveryJobParams{
		Logger:        testLogger(),
		DB:            client,
		Subscriptions: subs,
		Orders:        orderSvc,
		Outbox:        emitter,
		Metrics:       outcomes,
		Now:           clock,
	})
	require.NoError(t, err)
	return deliveryEnv{conn: client.DB(), subs: subs, job: job, outcomes: outcomes}
}

func (e deliveryEnv) subscriber(t *testing.T) *models.User {
	t.Helper()
	phone := "9876543210"
	addr := "4 Park Street, Kolkata"
	u := &models.User{
		Name:         "Neha",
		Email:        uuid.NewString() + "@example.com",
		Phone:        &phone,
		Address:      &addr,
		PasswordHash: "x",
		Role:         enums.UserRoleCustomer,
	}
	require.NoError(t, e.conn.Create(u).Error)
	return u
}

func (e deliveryEnv) product(t *testing.T, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:              "Vitamin D3 1000IU",
		Brand:             "HealthKart",
		ProductType:       enums.ProductTypeSupplement,
		Price:             decimal.RequireFromString("100.00"),
		StockQuantity:     stock,
		LowStockThreshold: 5,
		IsActive:          true,
	}
	require.NoError(t, e.conn.Create(p).Error)
	return p
}

func (e deliveryEnv) subscribe(t *testing.T, userID, productID uuid.UUID, qty int) uuid.UUID {
	t.Helper()
	start := deliveryDay
	sub, err := e.subs.Create(context.Background(), userID, subscriptions.CreateInput{
		ProductID: productID,
		Frequency: enums.FrequencyWeekly,
		Quantity:  qty,
		StartDate: &start,
	})
	require.NoError(t, err)
	return sub.ID
}

func TestSubscriptionDeliveryCreatesOrderAndAdvances(t *testing.T) {
	env := newDeliveryEnv(t)
	ctx := context.Background()
	u := env.subscriber(t)
	p := env.product(t, 20)
	subID := env.subscribe(t, u.ID, p.ID, 2)

	require.NoError(t, env.job.Run(ctx))
	require.Equal(t, 1, env.outcomes[deliveryCreated])

	var order models.Order
	require.NoError(t, env.conn.Preload("Items").First(&order, "subscription_id = ?", subID).Error)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, enums.PaymentMethodSubscription, order.PaymentMethod)
	require.Equal(t, "4 Park Street, Kolkata", order.DeliveryAddress)
	require.True(t, decimal.RequireFromString("260.00").Equal(order.Total), order.Total.String())
	require.Len(t, order.Items, 1)
	require.True(t, order.Items[0].StockCommitted)

	var fresh models.Product
	require.NoError(t, env.conn.First(&fresh, "id = ?", p.ID).Error)
	require.Equal(t, 18, fresh.StockQuantity)
	require.Equal(t, 6, fresh.ReservedQuantity)

	var sub models.Subscription
	require.NoError(t, env.conn.First(&sub, "id = ?", subID).Error)
	require.Equal(t, 6, sub.ReservedQuantity)
	require.Equal(t, "2026-05-11", sub.NextDelivery.UTC().Format("2006-01-02"))
	require.NotNil(t, sub.LastDeliveredAt)

	var events int64
	require.NoError(t, env.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventSubscriptionDeliveryCreated).Count(&events).Error)
	require.EqualValues(t, 1, events)

	// same day again: nothing is due
	require.NoError(t, env.job.Run(ctx))
	var orderCount int64
	require.NoError(t, env.conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 1, orderCount)
}

func TestSubscriptionDeliveryRejectsInactiveProductWithoutFailing(t *testing.T) {
	env := newDeliveryEnv(t)
	ctx := context.Background()
	u := env.subscriber(t)
	p := env.product(t, 20)
	subID := env.subscribe(t, u.ID, p.ID, 1)
	other := env.product(t, 20)
	env.subscribe(t, u.ID, other.ID, 1)

	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)

	require.NoError(t, env.job.Run(ctx))
	require.Equal(t, 1, env.outcomes[deliveryRejected])
	require.Equal(t, 1, env.outcomes[deliveryCreated])

	var sub models.Subscription
	require.NoError(t, env.conn.First(&sub, "id = ?", subID).Error)
	require.Equal(t, "2026-05-04", sub.NextDelivery.UTC().Format("2006-01-02"))
	require.Equal(t, 1, sub.DeliveryRejections)
	require.True(t, sub.IsActive)

	var fresh models.Product
	require.NoError(t, env.conn.First(&fresh, "id = ?", p.ID).Error)
	require.Equal(t, 20, fresh.StockQuantity)
	require.Equal(t, 3, fresh.ReservedQuantity)
}

func TestSubscriptionDeliveryPausesAfterRepeatedRejections(t *testing.T) {
	env := newDeliveryEnv(t)
	ctx := context.Background()
	u := env.subscriber(t)
	p := env.product(t, 20)
	subID := env.subscribe(t, u.ID, p.ID, 2)
	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)

	for range subscriptions.DefaultMaxRejections {
		require.NoError(t, env.job.Run(ctx))
	}
	require.Equal(t, subscriptions.DefaultMaxRejections, env.outcomes[deliveryRejected])
	require.Equal(t, 1, env.outcomes[deliveryPaused])

	var sub models.Subscription
	require.NoError(t, env.conn.First(&sub, "id = ?", subID).Error)
	require.False(t, sub.IsActive)
	require.NotNil(t, sub.PausedAt)
	require.Nil(t, sub.CancelledAt)
	require.Zero(t, sub.ReservedQuantity)
	require.Equal(t, subscriptions.DefaultMaxRejections, sub.DeliveryRejections)

	var fresh models.Product
	require.NoError(t, env.conn.First(&fresh, "id = ?", p.ID).Error)
	require.Zero(t, fresh.ReservedQuantity)

	var events int64
	require.NoError(t, env.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventSubscriptionPaused).Count(&events).Error)
	require.EqualValues(t, 1, events)

	// paused subscriptions are no longer due
	require.NoError(t, env.job.Run(ctx))
	require.Equal(t, subscriptions.DefaultMaxRejections, env.outcomes[deliveryRejected])
}

func TestSubscriptionDeliveryClearsRejectionsOnSuccess(t *testing.T) {
	env := newDeliveryEnv(t)
	ctx := context.Background()
	u := env.subscriber(t)
	p := env.product(t, 20)
	subID := env.subscribe(t, u.ID, p.ID, 1)

	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)
	require.NoError(t, env.job.Run(ctx))
	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", true).Error)
	require.NoError(t, env.job.Run(ctx))
	require.Equal(t, 1, env.outcomes[deliveryCreated])

	var sub models.Subscription
	require.NoError(t, env.conn.First(&sub, "id = ?", subID).Error)
	require.True(t, sub.IsActive)
	require.Zero(t, sub.DeliveryRejections)
	require.Nil(t, sub.PausedAt)
}

func TestSubscriptionDeliverySkipsCancelled(t *testing.T) {
	env := newDeliveryEnv(t)
	ctx := context.Background()
	u := env.subscriber(t)
	p := env.product(t, 20)
	subID := env.subscribe(t, u.ID, p.ID, 1)
	_, err := env.subs.Cancel(ctx, u.ID, subID)
	require.NoError(t, err)

	require.NoError(t, env.job.Run(ctx))
	require.Empty(t, env.outcomes)
}

func TestNewSubscriptionDeliveryJobValidates(t *testing.T) {
	_, err := NewSubscriptionDeliveryJob(SubscriptionDeliveryJobParams{Logger: testLogger()})
	require.Error(t, err)
}
