package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
)

// Reasons reported when a product cannot go into a cart.
const (
	ReasonNotFound          = "not_found"
	ReasonInactive          = "inactive"
	ReasonExpired           = "expired"
	ReasonInsufficientStock = "insufficient_stock"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the per-user cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*View, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	SaveForLater(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	MoveToCart(ctx context.Context, userID, savedID uuid.UUID) (*View, error)
	ListSaved(ctx context.Context, userID uuid.UUID) ([]SavedItemDTO, error)
	RemoveSaved(ctx context.Context, userID, savedID uuid.UUID) error

	// Transaction-scoped helpers for checkout, reorder and wishlist.
	AddItemTx(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, qty int) error
	ItemsTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]models.CartItem, error)
	ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type ServiceParams struct {
	Repo   *Repository
	Tx     txRunner
	Policy pricing.Policy
	Now    func() time.Time
}

type service struct {
	repo   *Repository
	tx     txRunner
	policy pricing.Policy
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, tx: params.Tx, policy: params.Policy, now: now}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return BuildView(items, s.policy, s.now()), nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*View, error) {
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.AddItemTx(ctx, tx, userID, productID, qty)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// AddItemTx merges qty into any existing line and checks the merged quantity
// against available stock. Stock is checked, not reserved.
func (s *service) AddItemTx(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	product, err := s.purchasableProduct(ctx, tx, productID)
	if err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	total := qty
	existing, err := repo.FindItemByProduct(ctx, userID, productID)
	switch {
	case err == nil:
		total += existing.Quantity
	case !db.IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	if err := checkStock(product, total); err != nil {
		return err
	}
	if err := repo.SetQuantity(ctx, userID, productID, total); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return nil
}

// UpdateItem sets an absolute quantity; zero or less removes the line.
func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*View, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, userID, itemID)
		if err != nil {
			return notFoundOr(err, "cart item not found", "load cart item")
		}
		product, err := s.purchasableProduct(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		if err := checkStock(product, qty); err != nil {
			return err
		}
		if err := repo.SetQuantity(ctx, userID, item.ProductID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	affected, err := s.repo.DeleteItem(ctx, userID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteAll(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) ItemsTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]models.CartItem, error) {
	items, err := s.repo.WithTx(tx).ListItems(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return items, nil
}

func (s *service) ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if err := s.repo.WithTx(tx).DeleteAll(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// SaveForLater moves a cart line to the saved list with its quantity.
func (s *service) SaveForLater(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, userID, itemID)
		if err != nil {
			return notFoundOr(err, "cart item not found", "load cart item")
		}
		if err := repo.UpsertSaved(ctx, userID, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item for later")
		}
		if _, err := repo.DeleteItem(ctx, userID, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// MoveToCart adds a saved item back to the cart, subject to the usual stock check.
func (s *service) MoveToCart(ctx context.Context, userID, savedID uuid.UUID) (*View, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		saved, err := repo.FindSaved(ctx, userID, savedID)
		if err != nil {
			return notFoundOr(err, "saved item not found", "load saved item")
		}
		if err := s.AddItemTx(ctx, tx, userID, saved.ProductID, saved.Quantity); err != nil {
			return err
		}
		if _, err := repo.DeleteSaved(ctx, userID, savedID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove saved item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) ListSaved(ctx context.Context, userID uuid.UUID) ([]SavedItemDTO, error) {
	rows, err := s.repo.ListSaved(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list saved items")
	}
	return toSavedDTOs(rows), nil
}

func (s *service) RemoveSaved(ctx context.Context, userID, savedID uuid.UUID) error {
	affected, err := s.repo.DeleteSaved(ctx, userID, savedID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove saved item")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "saved item not found")
	}
	return nil
}

func (s *service) purchasableProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]string{"reason": ReasonNotFound})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
			WithDetails(map[string]string{"reason": ReasonInactive})
	}
	if product.IsExpired(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product has expired").
			WithDetails(map[string]string{"reason": ReasonExpired})
	}
	return &product, nil
}

func checkStock(product *models.Product, qty int) error {
	if available := product.AvailableStock(); qty > available {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
			"reason":     ReasonInsufficientStock,
			"product_id": product.ID,
			"requested":  qty,
			"available":  available,
		})
	}
	return nil
}

func notFoundOr(err error, notFoundMsg, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

// Reason extracts the skip reason carried by errors from AddItemTx.
func Reason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	switch details := typed.Details().(type) {
	case map[string]string:
		return details["reason"]
	case map[string]any:
		if reason, ok := details["reason"].(string); ok {
			return reason
		}
	}
	return ""
}
