package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

// Order is the immutable record of a checkout. Only status, delivery contact
// fields and notes change after creation.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:orders_user_id_idx"`
	SubscriptionID  *uuid.UUID          `gorm:"column:subscription_id;type:uuid"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:pending;index:orders_status_idx"`
	DeliveryAddress string              `gorm:"column:delivery_address;not null"`
	PhoneNumber     string              `gorm:"column:phone_number;not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Notes           *string             `gorm:"column:notes"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax             decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	DeliveryFee     decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem snapshots name and price at purchase time. StockCommitted flips once
// the units have been removed from product stock.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:order_items_order_id_idx"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index:order_items_product_id_idx"`
	ProductName    string          `gorm:"column:product_name;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	StockCommitted bool            `gorm:"column:stock_committed;not null;default:false"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// OrderStatusHistory is the audit trail of status changes.
type OrderStatusHistory struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index:order_status_history_order_id_idx"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:text"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:text;not null"`
	Notes      *string            `gorm:"column:notes"`
	ActorID    *uuid.UUID         `gorm:"column:actor_id;type:uuid"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
