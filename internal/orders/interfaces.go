package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/internal/cart"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
)

// Repository defines persistence for orders, their items and status history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (int64, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) (int64, error)
	SetItemsCommitted(ctx context.Context, itemIDs []uuid.UUID, committed bool) error
	InsertHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	HasDeliveredPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// ListFilters narrows order listings. A nil UserID lists every customer.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartService interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.View, error)
	AddItemTx(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, qty int) error
	ItemsTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]models.CartItem, error)
	ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type stockKeeper interface {
	DecrementOnFulfillment(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, fromReservation bool) error
	Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type refillRecorder interface {
	RecordPurchaseTx(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, productIDs []uuid.UUID, orderedAt time.Time) error
}

type orderMetrics interface {
	OrderCreated(source string)
	StatusChanged(from, to string)
	StockRejected(operation string)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
