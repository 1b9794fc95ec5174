package alerts

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
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client := dbtest.Client(t)
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(client.DB()),
		Tx:                client,
		ExpiryWarningDays: 30,
		Now:               func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, client.DB()
}

func seedProduct(t *testing.T, conn *gorm.DB, stock, threshold int, expiry *time.Time) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:              "Insulin Glargine",
		Brand:             "Sanofi",
		ProductType:       enums.ProductTypeMedicine,
		Price:             decimal.RequireFromString("780.00"),
		StockQuantity:     stock,
		LowStockThreshold: threshold,
		ExpiryDate:        expiry,
		IsActive:          true,
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func openAlerts(t *testing.T, conn *gorm.DB) []models.InventoryAlert {
	t.Helper()
	var rows []models.InventoryAlert
	require.NoError(t, conn.Where("resolved = ?", false).Find(&rows).Error)
	return rows
}

func TestScanOpensOneAlertPerCondition(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	soon := fixedNow.AddDate(0, 0, 10)
	far := fixedNow.AddDate(1, 0, 0)
	low := seedProduct(t, conn, 3, 5, &far)
	expiring := seedProduct(t, conn, 50, 5, &soon)
	seedProduct(t, conn, 50, 5, &far)

	result, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, ScanResult{Opened: 2}, result)

	// a second scan is a no-op
	result, err = svc.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, ScanResult{}, result)

	alerts, err := svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	byProduct := map[uuid.UUID]enums.InventoryAlertType{}
	for _, a := range alerts {
		byProduct[a.ProductID] = a.AlertType
	}
	require.Equal(t, enums.InventoryAlertLowStock, byProduct[low.ID])
	require.Equal(t, enums.InventoryAlertExpiry, byProduct[expiring.ID])
}

func TestScanResolvesClearedConditions(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	p := seedProduct(t, conn, 3, 5, nil)

	_, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, openAlerts(t, conn), 1)

	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("stock_quantity", 40).Error)
	result, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, ScanResult{Resolved: 1}, result)
	require.Empty(t, openAlerts(t, conn))
}

func TestResolveAndRescan(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	seedProduct(t, conn, 0, 5, nil)

	_, err := svc.Scan(ctx)
	require.NoError(t, err)
	open := openAlerts(t, conn)
	require.Len(t, open, 1)

	require.NoError(t, svc.Resolve(ctx, open[0].ID))
	err = svc.Resolve(ctx, open[0].ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	result, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Opened)
}

func TestExpiryMessage(t *testing.T) {
	expiry := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "X expired on 2026-04-20", expiryMessage("X", -11, expiry))
	require.Equal(t, "X expires today", expiryMessage("X", 0, expiry))
	require.Equal(t, "X expires on 2026-04-20 (3 days)", expiryMessage("X", 3, expiry))
}
