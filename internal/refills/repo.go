package refills

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

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

// Upsert points the (user, product) suggestion at the latest order and revives
// it if the user had dismissed it.
func (r *Repository) Upsert(ctx context.Context, row *models.RefillSuggestion) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_order_id", "suggested_date", "dismissed", "updated_at"}),
		}).
		Create(row).Error
}

// ListDue returns open suggestions dated on or before cutoff.
func (r *Repository) ListDue(ctx context.Context, userID uuid.UUID, cutoff time.Time) ([]models.RefillSuggestion, error) {
	var rows []models.RefillSuggestion
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ? AND dismissed = ? AND suggested_date <= ?", userID, false, cutoff).
		Order("suggested_date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Dismiss(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RefillSuggestion{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"dismissed": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// PurgeDismissed deletes suggestions dismissed before cutoff.
func (r *Repository) PurgeDismissed(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("dismissed = ? AND updated_at < ?", true, cutoff).
		Delete(&models.RefillSuggestion{})
	return res.RowsAffected, res.Error
}
