package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/medcart-backend/internal/cart"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type HistoryDTO struct {
	FromStatus *enums.OrderStatus `json:"from_status,omitempty"`
	ToStatus   enums.OrderStatus  `json:"to_status"`
	Notes      *string            `json:"notes,omitempty"`
	ActorID    *uuid.UUID         `json:"actor_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

type OrderDTO struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	UserID             uuid.UUID           `json:"user_id"`
	SubscriptionID     *uuid.UUID          `json:"subscription_id,omitempty"`
	Status             enums.OrderStatus   `json:"status"`
	AllowedTransitions []enums.OrderStatus `json:"allowed_transitions"`
	DeliveryAddress    string              `json:"delivery_address"`
	PhoneNumber        string              `json:"phone_number"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	Notes              *string             `json:"notes,omitempty"`
	Items              []OrderItemDTO      `json:"items"`
	TotalItems         int                 `json:"total_items"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	Tax                decimal.Decimal     `json:"tax"`
	DeliveryFee        decimal.Decimal     `json:"delivery_fee"`
	Total              decimal.Decimal     `json:"total"`
	CanReorder         bool                `json:"can_reorder"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	History            []HistoryDTO        `json:"history,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// ListResult is one page of orders.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// SkippedItem explains why a reorder line did not make it into the cart.
type SkippedItem struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
}

type ReorderLine struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
}

// ReorderResult reports the best-effort outcome of a reorder.
type ReorderResult struct {
	SourceOrderID uuid.UUID     `json:"source_order_id"`
	Added         []ReorderLine `json:"added"`
	Skipped       []SkippedItem `json:"skipped"`
	Cart          *cart.View    `json:"cart"`
}

func ToDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		SubscriptionID:     order.SubscriptionID,
		Status:             order.Status,
		AllowedTransitions: AllowedTransitions(order.Status),
		DeliveryAddress:    order.DeliveryAddress,
		PhoneNumber:        order.PhoneNumber,
		PaymentMethod:      order.PaymentMethod,
		Notes:              order.Notes,
		Items:              make([]OrderItemDTO, 0, len(order.Items)),
		Subtotal:           order.Subtotal,
		Tax:                order.Tax,
		DeliveryFee:        order.DeliveryFee,
		Total:              order.Total,
		CanReorder:         order.Status == enums.OrderStatusDelivered,
		DeliveredAt:        order.DeliveredAt,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
		dto.TotalItems += item.Quantity
	}
	return dto
}

func toHistoryDTOs(rows []models.OrderStatusHistory) []HistoryDTO {
	out := make([]HistoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryDTO{
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			Notes:      row.Notes,
			ActorID:    row.ActorID,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out
}
