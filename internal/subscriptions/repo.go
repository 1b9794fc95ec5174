package subscriptions

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

func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// FindForUser scopes the lookup to the owner.
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Product").
		First(&sub, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("is_active DESC").
		Order("next_delivery ASC").
		Find(&rows).Error
	return rows, err
}

// ListDue returns active subscriptions whose next delivery is on or before asOf.
func (r *Repository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	var rows []models.Subscription
	query := r.db.WithContext(ctx).
		Where("is_active = ? AND next_delivery <= ?", true, asOf).
		Order("next_delivery ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// LockDue reloads a subscription inside a transaction, re-checking that it is
// still due. Postgres takes a row lock so two workers cannot deliver it twice.
func (r *Repository) LockDue(ctx context.Context, id uuid.UUID, asOf time.Time) (*models.Subscription, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sub models.Subscription
	err := query.
		Preload("Product").
		First(&sub, "id = ? AND is_active = ? AND next_delivery <= ?", id, true, asOf).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Deactivate flips an active subscription off. Zero rows means it was already inactive.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{
			"is_active":         false,
			"reserved_quantity": 0,
			"cancelled_at":      at,
			"updated_at":        at,
		})
	return res.RowsAffected, res.Error
}

// FindActive loads an active subscription by id regardless of owner.
func (r *Repository) FindActive(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Pause switches an active subscription off after repeated rejections. Unlike
// Deactivate it leaves cancelled_at empty. Zero rows means it was already inactive.
func (r *Repository) Pause(ctx context.Context, id uuid.UUID, rejections int, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{
			"is_active":           false,
			"reserved_quantity":   0,
			"delivery_rejections": rejections,
			"paused_at":           at,
			"updated_at":          at,
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}
