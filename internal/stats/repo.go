package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

type salesRow struct {
	Total decimal.Decimal
	Count int64
}

type statusCount struct {
	Status enums.OrderStatus
	Count  int64
}

// Repository runs read-only aggregates across the store tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DeliveredSales sums the totals of delivered orders.
func (r *Repository) DeliveredSales(ctx context.Context) (decimal.Decimal, int64, error) {
	var row salesRow
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total), 0) AS total, COUNT(*) AS count").
		Where("status = ?", enums.OrderStatusDelivered).
		Scan(&row).Error
	return row.Total, row.Count, err
}

func (r *Repository) OrdersByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	return count(r.products(ctx))
}

// CountLowStock matches the low stock report: active products whose
// available stock is at or under their threshold.
func (r *Repository) CountLowStock(ctx context.Context) (int64, error) {
	return count(r.products(ctx).
		Where("is_active = ?", true).
		Where("stock_quantity - reserved_quantity <= low_stock_threshold"))
}

// CountExpiringBefore includes products that have already expired.
func (r *Repository) CountExpiringBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return count(r.products(ctx).Where("expiry_date IS NOT NULL AND expiry_date <= ?", cutoff))
}

func (r *Repository) CountUsers(ctx context.Context) (total, active int64, err error) {
	users := func() *gorm.DB { return r.db.WithContext(ctx).Model(&models.User{}) }
	if total, err = count(users()); err != nil {
		return 0, 0, err
	}
	active, err = count(users().Where("is_active = ?", true))
	return total, active, err
}

func (r *Repository) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	return count(r.db.WithContext(ctx).Model(&models.Subscription{}).Where("is_active = ?", true))
}

func (r *Repository) CountOpenAlerts(ctx context.Context) (int64, error) {
	return count(r.db.WithContext(ctx).Model(&models.InventoryAlert{}).Where("resolved = ?", false))
}

func (r *Repository) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) RecentProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) products(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Product{})
}

func count(query *gorm.DB) (int64, error) {
	var n int64
	err := query.Count(&n).Error
	return n, err
}
