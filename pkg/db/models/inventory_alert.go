package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

type InventoryAlert struct {
	ID         uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID                `gorm:"column:product_id;type:uuid;not null;index:inventory_alerts_product_type_idx"`
	Product    *Product                 `gorm:"foreignKey:ProductID;references:ID"`
	AlertType  enums.InventoryAlertType `gorm:"column:alert_type;type:text;not null;index:inventory_alerts_product_type_idx"`
	Message    string                   `gorm:"column:message;not null"`
	Resolved   bool                     `gorm:"column:resolved;not null;default:false"`
	ResolvedAt *time.Time               `gorm:"column:resolved_at"`
	CreatedAt  time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (a *InventoryAlert) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
