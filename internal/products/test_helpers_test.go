package product

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

func mustCreateProduct(t *testing.T, conn *gorm.DB, stock, reserved int, mutate ...func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:              "Paracetamol 500mg",
		Brand:             "Calpol",
		ProductType:       enums.ProductTypeMedicine,
		Price:             decimal.RequireFromString("32.50"),
		StockQuantity:     stock,
		ReservedQuantity:  reserved,
		LowStockThreshold: 10,
		IsActive:          true,
	}
	for _, fn := range mutate {
		fn(product)
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func reload(t *testing.T, conn *gorm.DB, product *models.Product) models.Product {
	t.Helper()
	var fresh models.Product
	if err := conn.First(&fresh, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return fresh
}

func dateUTC(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
