package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

// CreateInput is the customer request to subscribe to a product.
type CreateInput struct {
	ProductID uuid.UUID                   `json:"product_id" validate:"required"`
	Frequency enums.SubscriptionFrequency `json:"frequency" validate:"required"`
	Quantity  int                         `json:"quantity" validate:"required,min=1,max=100"`
	StartDate *time.Time                  `json:"start_date,omitempty"`
}

type SubscriptionDTO struct {
	ID                 uuid.UUID                   `json:"id"`
	ProductID          uuid.UUID                   `json:"product_id"`
	ProductName        string                      `json:"product_name,omitempty"`
	UnitPrice          *decimal.Decimal            `json:"unit_price,omitempty"`
	Frequency          enums.SubscriptionFrequency `json:"frequency"`
	IntervalDays       int                         `json:"interval_days"`
	Quantity           int                         `json:"quantity"`
	ReservedQuantity   int                         `json:"reserved_quantity"`
	NextDelivery       string                      `json:"next_delivery"`
	IsActive           bool                        `json:"is_active"`
	UpcomingDeliveries []string                    `json:"upcoming_deliveries"`
	LastDeliveredAt    *time.Time                  `json:"last_delivered_at,omitempty"`
	CancelledAt        *time.Time                  `json:"cancelled_at,omitempty"`
	PausedAt           *time.Time                  `json:"paused_at,omitempty"`
	DeliveryRejections int                         `json:"delivery_rejections"`
	CreatedAt          time.Time                   `json:"created_at"`
}

const dateLayout = "2006-01-02"

// ToDTO renders a subscription. Cancelled subscriptions have no upcoming deliveries.
func ToDTO(sub models.Subscription) SubscriptionDTO {
	dto := SubscriptionDTO{
		ID:                 sub.ID,
		ProductID:          sub.ProductID,
		Frequency:          sub.Frequency,
		IntervalDays:       sub.Frequency.IntervalDays(),
		Quantity:           sub.Quantity,
		ReservedQuantity:   sub.ReservedQuantity,
		NextDelivery:       sub.NextDelivery.UTC().Format(dateLayout),
		IsActive:           sub.IsActive,
		UpcomingDeliveries: []string{},
		LastDeliveredAt:    sub.LastDeliveredAt,
		CancelledAt:        sub.CancelledAt,
		PausedAt:           sub.PausedAt,
		DeliveryRejections: sub.DeliveryRejections,
		CreatedAt:          sub.CreatedAt,
	}
	if sub.Product != nil {
		dto.ProductName = sub.Product.Name
		price := sub.Product.Price
		dto.UnitPrice = &price
	}
	if sub.IsActive {
		for _, date := range UpcomingDeliveries(sub.NextDelivery, sub.Frequency, DefaultUpcomingCount) {
			dto.UpcomingDeliveries = append(dto.UpcomingDeliveries, date.Format(dateLayout))
		}
	}
	return dto
}
