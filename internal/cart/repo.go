package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
)

// Repository persists cart lines and saved-for-later items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListItems returns the user's lines with products preloaded, oldest first.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "id = ? AND user_id = ?", itemID, userID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByProduct returns gorm.ErrRecordNotFound when the product is not in the cart.
func (r *Repository) FindItemByProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "user_id = ? AND product_id = ?", userID, productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// SetQuantity writes the line's absolute quantity, inserting it when missing.
func (r *Repository) SetQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) error {
	item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *Repository) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

func (r *Repository) ListSaved(ctx context.Context, userID uuid.UUID) ([]models.SavedItem, error) {
	var rows []models.SavedItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindSaved(ctx context.Context, userID, savedID uuid.UUID) (*models.SavedItem, error) {
	var item models.SavedItem
	if err := r.db.WithContext(ctx).First(&item, "id = ? AND user_id = ?", savedID, userID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertSaved parks qty units of a product, replacing any earlier saved quantity.
func (r *Repository) UpsertSaved(ctx context.Context, userID, productID uuid.UUID, qty int) error {
	item := &models.SavedItem{UserID: userID, ProductID: productID, Quantity: qty}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
		}).
		Create(item).Error
}

func (r *Repository) DeleteSaved(ctx context.Context, userID, savedID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", savedID, userID).Delete(&models.SavedItem{})
	return res.RowsAffected, res.Error
}
