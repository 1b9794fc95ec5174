package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ActiveProducts loads the columns the scan evaluates for every listed product.
func (r *Repository) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Select("id", "name", "stock_quantity", "reserved_quantity", "low_stock_threshold", "expiry_date", "is_active").
		Where("is_active = ?", true).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListOpen(ctx context.Context) ([]models.InventoryAlert, error) {
	var rows []models.InventoryAlert
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("resolved = ?", false).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, alert *models.InventoryAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// ResolveMany closes the listed alerts if they are still open.
func (r *Repository) ResolveMany(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.InventoryAlert{}).
		Where("id IN ? AND resolved = ?", ids, false).
		Updates(map[string]any{"resolved": true, "resolved_at": at})
	return res.RowsAffected, res.Error
}
