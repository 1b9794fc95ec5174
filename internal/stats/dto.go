package stats

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	product "github.com/angelmondragon/medcart-backend/internal/products"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

// Dashboard is the administrator overview of sales, catalog and accounts.
type Dashboard struct {
	TotalSales          decimal.Decimal             `json:"total_sales"`
	DeliveredOrders     int64                       `json:"delivered_orders"`
	OrdersByStatus      map[enums.OrderStatus]int64 `json:"orders_by_status"`
	TotalProducts       int64                       `json:"total_products"`
	LowStockProducts    int64                       `json:"low_stock_products"`
	ExpiringSoon        int64                       `json:"expiring_soon"`
	ExpiryWindowDays    int                         `json:"expiry_window_days"`
	TotalUsers          int64                       `json:"total_users"`
	ActiveUsers         int64                       `json:"active_users"`
	ActiveSubscriptions int64                       `json:"active_subscriptions"`
	OpenAlerts          int64                       `json:"open_alerts"`
	RecentOrders        []RecentOrder               `json:"recent_orders"`
	RecentProducts      []product.ProductDTO        `json:"recent_products"`
	GeneratedAt         time.Time                   `json:"generated_at"`
}

type RecentOrder struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	Status      enums.OrderStatus `json:"status"`
	Total       decimal.Decimal   `json:"total"`
	CreatedAt   time.Time         `json:"created_at"`
}

func toRecentOrder(o models.Order) RecentOrder {
	return RecentOrder{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      o.Status,
		Total:       o.Total,
		CreatedAt:   o.CreatedAt,
	}
}
