package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout or a subscription delivery creates an order.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID       `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         uuid.UUID       `json:"user_id"`
	SubscriptionID *uuid.UUID      `json:"subscription_id,omitempty"`
	ItemCount      int             `json:"item_count"`
	Total          decimal.Decimal `json:"total"`
}

// OrderStatusChangedEvent records one status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Notes       string            `json:"notes,omitempty"`
}

// SubscriptionCreatedEvent carries the reservation taken at creation.
type SubscriptionCreatedEvent struct {
	SubscriptionID   uuid.UUID                   `json:"subscription_id"`
	UserID           uuid.UUID                   `json:"user_id"`
	ProductID        uuid.UUID                   `json:"product_id"`
	Frequency        enums.SubscriptionFrequency `json:"frequency"`
	Quantity         int                         `json:"quantity"`
	ReservedQuantity int                         `json:"reserved_quantity"`
	NextDelivery     time.Time                   `json:"next_delivery"`
}

// SubscriptionCancelledEvent is emitted once per subscription.
type SubscriptionCancelledEvent struct {
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	ProductID        uuid.UUID `json:"product_id"`
	ReleasedQuantity int       `json:"released_quantity"`
	CancelledAt      time.Time `json:"cancelled_at"`
}

// SubscriptionPausedEvent is emitted when repeated delivery rejections switch
// a subscription off. Reason is the last rejection message.
type SubscriptionPausedEvent struct {
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	ProductID        uuid.UUID `json:"product_id"`
	Rejections       int       `json:"rejections"`
	Reason           string    `json:"reason"`
	ReleasedQuantity int       `json:"released_quantity"`
	PausedAt         time.Time `json:"paused_at"`
}

// SubscriptionDeliveryCreatedEvent links a due delivery to the order it produced.
type SubscriptionDeliveryCreatedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	OrderID        uuid.UUID `json:"order_id"`
	DeliveryDate   time.Time `json:"delivery_date"`
	NextDelivery   time.Time `json:"next_delivery"`
}
