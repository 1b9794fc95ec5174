package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
)

// ListFilters are the catalog browse knobs.
type ListFilters struct {
	CategoryID           *uuid.UUID
	ProductType          *enums.ProductType
	RequiresPrescription *bool
	Query                string
}

// Repository wraps product and category persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs returns the products keyed by id; missing ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// ListPurchasable pages through active, unexpired products newest first.
func (r *Repository) ListPurchasable(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int, today time.Time) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Preload("Category").
		Where("is_active = ?", true).
		Where("(expiry_date IS NULL OR expiry_date >= ?)", today)

	if filters.CategoryID != nil {
		query = query.Where("category_id = ?", *filters.CategoryID)
	}
	if filters.ProductType != nil {
		query = query.Where("product_type = ?", *filters.ProductType)
	}
	if filters.RequiresPrescription != nil {
		query = query.Where("requires_prescription = ?", *filters.RequiresPrescription)
	}
	if q := strings.ToLower(strings.TrimSpace(filters.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(description) LIKE ?)", like, like, like)
	}

	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

// Related lists purchasable products in categoryID other than excludeID.
func (r *Repository) Related(ctx context.Context, categoryID, excludeID uuid.UUID, limit int, today time.Time) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("category_id = ? AND id <> ?", categoryID, excludeID).
		Where("is_active = ?", true).
		Where("(expiry_date IS NULL OR expiry_date >= ?)", today).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update applies column updates. A stock_quantity change is guarded so it can
// never fall below what subscriptions already hold.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id)
	if stock, ok := updates["stock_quantity"]; ok {
		query = query.Where("reserved_quantity <= ?", stock)
	}
	res := query.Updates(updates)
	return res.RowsAffected, res.Error
}

// LowStock lists active products whose available stock is at or under their threshold.
func (r *Repository) LowStock(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("stock_quantity - reserved_quantity <= low_stock_threshold").
		Order("stock_quantity - reserved_quantity ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// ExpiringBefore lists products with an expiry on or before cutoff, soonest first.
func (r *Repository) ExpiringBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date <= ?", cutoff).
		Order("expiry_date ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}
