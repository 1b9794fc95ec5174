package alerts

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

type AlertDTO struct {
	ID          uuid.UUID                `json:"id"`
	ProductID   uuid.UUID                `json:"product_id"`
	ProductName string                   `json:"product_name"`
	AlertType   enums.InventoryAlertType `json:"alert_type"`
	Message     string                   `json:"message"`
	CreatedAt   time.Time                `json:"created_at"`
}

func toDTO(a models.InventoryAlert) AlertDTO {
	dto := AlertDTO{
		ID:        a.ID,
		ProductID: a.ProductID,
		AlertType: a.AlertType,
		Message:   a.Message,
		CreatedAt: a.CreatedAt,
	}
	if a.Product != nil {
		dto.ProductName = a.Product.Name
	}
	return dto
}
