package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

// Subscription is a recurring delivery of one product. ReservedQuantity is the
// stock currently held against the product on its behalf.
type Subscription struct {
	ID               uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index:subscriptions_user_id_idx"`
	ProductID        uuid.UUID                   `gorm:"column:product_id;type:uuid;not null"`
	Product          *Product                    `gorm:"foreignKey:ProductID;references:ID"`
	Frequency        enums.SubscriptionFrequency `gorm:"column:frequency;type:text;not null"`
	Quantity         int                         `gorm:"column:quantity;not null"`
	ReservedQuantity int                         `gorm:"column:reserved_quantity;not null;default:0"`
	NextDelivery     time.Time                   `gorm:"column:next_delivery;type:date;not null;index:subscriptions_due_idx"`
	IsActive         bool                        `gorm:"column:is_active;not null;index:subscriptions_due_idx"`
	LastDeliveredAt  *time.Time                  `gorm:"column:last_delivered_at"`
	CancelledAt      *time.Time                  `gorm:"column:cancelled_at"`
	// DeliveryRejections counts consecutive due dates the delivery job could
	// not fill. It resets on every successful delivery.
	DeliveryRejections int        `gorm:"column:delivery_rejections;not null;default:0"`
	PausedAt           *time.Time `gorm:"column:paused_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
