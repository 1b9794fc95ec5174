package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefillSuggestion nudges a user to reorder a product they bought before.
type RefillSuggestion struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:refill_suggestions_user_product_key"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:refill_suggestions_user_product_key"`
	Product       *Product  `gorm:"foreignKey:ProductID;references:ID"`
	LastOrderID   uuid.UUID `gorm:"column:last_order_id;type:uuid;not null"`
	SuggestedDate time.Time `gorm:"column:suggested_date;type:date;not null"`
	Dismissed     bool      `gorm:"column:dismissed;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *RefillSuggestion) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
