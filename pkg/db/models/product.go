package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

// Product is a sellable catalog entry. StockQuantity counts owned units;
// ReservedQuantity counts units held for active subscriptions.
type Product struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID           *uuid.UUID        `gorm:"column:category_id;type:uuid;index:products_category_id_idx"`
	Category             *Category         `gorm:"foreignKey:CategoryID;references:ID"`
	Name                 string            `gorm:"column:name;not null"`
	Brand                string            `gorm:"column:brand;not null"`
	Description          string            `gorm:"column:description;not null;default:''"`
	ProductType          enums.ProductType `gorm:"column:product_type;type:text;not null;default:medicine"`
	Price                decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	StockQuantity        int               `gorm:"column:stock_quantity;not null;default:0"`
	ReservedQuantity     int               `gorm:"column:reserved_quantity;not null;default:0"`
	LowStockThreshold    int               `gorm:"column:low_stock_threshold;not null"`
	Dosage               *string           `gorm:"column:dosage"`
	Precautions          *string           `gorm:"column:precautions"`
	RequiresPrescription bool              `gorm:"column:requires_prescription;not null;default:false"`
	ExpiryDate           *time.Time        `gorm:"column:expiry_date;type:date"`
	ImageURL             *string           `gorm:"column:image_url"`
	IsActive             bool              `gorm:"column:is_active;not null"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// AvailableStock is the quantity purchasable right now.
func (p Product) AvailableStock() int {
	available := p.StockQuantity - p.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}

func (p Product) IsLowStock() bool {
	return p.AvailableStock() <= p.LowStockThreshold
}

// IsExpired compares calendar dates; a product expiring today is still sellable.
func (p Product) IsExpired(now time.Time) bool {
	if p.ExpiryDate == nil {
		return false
	}
	return truncateDay(*p.ExpiryDate).Before(truncateDay(now))
}

// DaysToExpiry returns nil when the product has no expiry date.
func (p Product) DaysToExpiry(now time.Time) *int {
	if p.ExpiryDate == nil {
		return nil
	}
	days := int(math.Round(truncateDay(*p.ExpiryDate).Sub(truncateDay(now)).Hours() / 24))
	return &days
}

// Purchasable reports whether the product can be put in a cart today.
func (p Product) Purchasable(now time.Time) bool {
	return p.IsActive && !p.IsExpired(now)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
