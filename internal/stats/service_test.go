package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

var statsNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newStatsService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Now: func() time.Time { return statsNow }})
	require.NoError(t, err)
	return svc, conn
}

func seedUser(t *testing.T, conn *gorm.DB, active bool) *models.User {
	t.Helper()
	u := &models.User{Name: "Shopper", Email: uuid.NewString() + "@example.com", PasswordHash: "x", Role: enums.UserRoleCustomer}
	require.NoError(t, conn.Create(u).Error)
	if !active {
		require.NoError(t, conn.Model(u).Update("is_active", false).Error)
	}
	return u
}

func seedProduct(t *testing.T, conn *gorm.DB, stock int, expiry *time.Time) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:              "Cetirizine 10mg",
		Brand:             "Cipla",
		ProductType:       enums.ProductTypeMedicine,
		Price:             decimal.RequireFromString("45.00"),
		StockQuantity:     stock,
		LowStockThreshold: 10,
		ExpiryDate:        expiry,
		IsActive:          true,
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus, total string) *models.Order {
	t.Helper()
	amount := decimal.RequireFromString(total)
	o := &models.Order{
		OrderNumber:     "MC-" + uuid.NewString()[:8],
		UserID:          userID,
		Status:          status,
		DeliveryAddress: "12 MG Road, Pune",
		PhoneNumber:     "9876543210",
		PaymentMethod:   enums.PaymentMethodCOD,
		Subtotal:        amount,
		Tax:             decimal.Zero,
		DeliveryFee:     decimal.Zero,
		Total:           amount,
	}
	require.NoError(t, conn.Create(o).Error)
	return o
}

func TestDashboardAggregates(t *testing.T) {
	svc, conn := newStatsService(t)
	ctx := context.Background()

	buyer := seedUser(t, conn, true)
	seedUser(t, conn, false)

	soon := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
	lapsed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	far := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	low := seedProduct(t, conn, 4, &far)
	seedProduct(t, conn, 50, &soon)
	seedProduct(t, conn, 50, &lapsed)
	seedProduct(t, conn, 50, nil)

	seedOrder(t, conn, buyer.ID, enums.OrderStatusDelivered, "100.50")
	seedOrder(t, conn, buyer.ID, enums.OrderStatusDelivered, "200.25")
	seedOrder(t, conn, buyer.ID, enums.OrderStatusPending, "999.00")
	seedOrder(t, conn, buyer.ID, enums.OrderStatusCancelled, "10.00")

	require.NoError(t, conn.Create(&models.InventoryAlert{
		ProductID: low.ID,
		AlertType: enums.InventoryAlertLowStock,
		Message:   "low",
	}).Error)

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, "300.75", dash.TotalSales.StringFixed(2))
	require.EqualValues(t, 2, dash.DeliveredOrders)
	require.EqualValues(t, 1, dash.OrdersByStatus[enums.OrderStatusPending])
	require.EqualValues(t, 1, dash.OrdersByStatus[enums.OrderStatusCancelled])
	require.EqualValues(t, 4, dash.TotalProducts)
	require.EqualValues(t, 1, dash.LowStockProducts)
	require.EqualValues(t, 2, dash.ExpiringSoon)
	require.Equal(t, 30, dash.ExpiryWindowDays)
	require.EqualValues(t, 2, dash.TotalUsers)
	require.EqualValues(t, 1, dash.ActiveUsers)
	require.EqualValues(t, 0, dash.ActiveSubscriptions)
	require.EqualValues(t, 1, dash.OpenAlerts)
	require.Len(t, dash.RecentOrders, 4)
	require.Len(t, dash.RecentProducts, 4)
	require.Equal(t, statsNow, dash.GeneratedAt)
}

func TestDashboardCapsRecentLists(t *testing.T) {
	svc, conn := newStatsService(t)
	buyer := seedUser(t, conn, true)
	for range recentLimit + 3 {
		seedProduct(t, conn, 50, nil)
		seedOrder(t, conn, buyer.ID, enums.OrderStatusPending, "20.00")
	}

	dash, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, dash.RecentOrders, recentLimit)
	require.Len(t, dash.RecentProducts, recentLimit)
	require.True(t, dash.TotalSales.IsZero())
	require.Zero(t, dash.DeliveredOrders)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
