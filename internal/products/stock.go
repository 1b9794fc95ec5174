package product

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

// Stock mutates stock_quantity and reserved_quantity. Every method is a single
// conditional UPDATE, so concurrent writers can never push reserved above stock
// or available below zero.
type Stock struct {
	now func() time.Time
}

func NewStock() *Stock {
	return &Stock{now: time.Now}
}

// InsufficientStockDetails is attached to INSUFFICIENT_STOCK errors.
type InsufficientStockDetails struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Reserve holds qty units for future deliveries.
func (s *Stock) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity - reserved_quantity >= ?", productID, qty).
		Updates(map[string]any{
			"reserved_quantity": gorm.Expr("reserved_quantity + ?", qty),
			"updated_at":        s.now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		return shortfall(ctx, tx, productID, qty)
	}
	return nil
}

// Release returns reserved units, flooring reserved_quantity at zero.
func (s *Stock) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty == 0 {
		return nil
	}
	if err := validateQty(qty); err != nil {
		return err
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"reserved_quantity": floorExpr(qty),
			"updated_at":        s.now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// DecrementOnFulfillment removes shipped units from stock. Reserved units come
// out of both columns; unreserved units must be available.
func (s *Stock) DecrementOnFulfillment(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, fromReservation bool) error {
	if err := validateQty(qty); err != nil {
		return err
	}

	updates := map[string]any{
		"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
		"updated_at":     s.now().UTC(),
	}
	query := tx.WithContext(ctx).Model(&models.Product{})
	if fromReservation {
		updates["reserved_quantity"] = floorExpr(qty)
		query = query.Where("id = ? AND stock_quantity >= ?", productID, qty)
	} else {
		query = query.Where("id = ? AND stock_quantity - reserved_quantity >= ?", productID, qty)
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return shortfall(ctx, tx, productID, qty)
	}
	return nil
}

// Restock puts committed units back, e.g. when an order is cancelled after its
// stock was already taken.
func (s *Stock) Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateQty(qty); err != nil {
		return err
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"updated_at":     s.now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func floorExpr(qty int) any {
	return gorm.Expr("CASE WHEN reserved_quantity >= ? THEN reserved_quantity - ? ELSE 0 END", qty, qty)
}

func validateQty(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

// shortfall explains why a guarded update touched no rows.
func shortfall(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	var product models.Product
	if err := tx.WithContext(ctx).Select("id", "stock_quantity", "reserved_quantity").First(&product, "id = ?", productID).Error; err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(InsufficientStockDetails{
		ProductID: productID,
		Requested: qty,
		Available: product.AvailableStock(),
	})
}
