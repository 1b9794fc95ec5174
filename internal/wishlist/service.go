package wishlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/internal/cart"
	product "github.com/angelmondragon/medcart-backend/internal/products"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartAdder interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.View, error)
	AddItemTx(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, qty int) error
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	WishlistRepo *Repository
	ProductRepo  *product.Repository
	Cart         cartAdder
	Tx           txRunner
	Now          func() time.Time
}

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (WishlistItemsPageDTO, error)
	GetWishlistIDs(ctx context.Context, userID uuid.UUID) (WishlistIDsDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	MoveToCart(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.View, error)
}

type service struct {
	wishlistRepo *Repository
	productRepo  *product.Repository
	cart         cartAdder
	tx           txRunner
	now          func() time.Time
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.WishlistRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist repo is required")
	}
	if params.ProductRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	if params.Cart == nil || params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart service and transaction runner are required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		wishlistRepo: params.WishlistRepo,
		productRepo:  params.ProductRepo,
		cart:         params.Cart,
		tx:           params.Tx,
		now:          now,
	}, nil
}

// GetWishlist returns the paginated wishlist for a user.
func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (WishlistItemsPageDTO, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return WishlistItemsPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.wishlistRepo.ListItems(ctx, userID, cursor, params.Limit)
	if err != nil {
		return WishlistItemsPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}
	page, next := pagination.Page(rows, params.Limit, func(w models.WishlistItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.ID}
	})

	now := s.now().UTC()
	items := make([]WishlistItemDTO, 0, len(page))
	for _, row := range page {
		if row.Product == nil {
			continue
		}
		items = append(items, WishlistItemDTO{
			ID:        row.ID,
			Product:   product.ToDTO(*row.Product, now),
			CreatedAt: row.CreatedAt,
		})
	}
	return WishlistItemsPageDTO{Items: items, NextCursor: next}, nil
}

// GetWishlistIDs returns all saved product IDs for the user.
func (s *service) GetWishlistIDs(ctx context.Context, userID uuid.UUID) (WishlistIDsDTO, error) {
	ids, err := s.wishlistRepo.ListProductIDs(ctx, userID)
	if err != nil {
		return WishlistIDsDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist ids")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return WishlistIDsDTO{ProductIDs: ids}, nil
}

// AddItem ensures the product is listed and adds it; adding twice is a no-op.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	p, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !p.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.wishlistRepo.AddItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wishlist item")
	}
	return nil
}

// RemoveItem drops the wishlist entry regardless of prior state.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if _, err := s.wishlistRepo.RemoveItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	return nil
}

// MoveToCart adds the product to the cart and removes it from the wishlist
// in one transaction.
func (s *service) MoveToCart(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.View, error) {
	if qty <= 0 {
		qty = 1
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		removed, err := s.wishlistRepo.WithTx(tx).RemoveItem(ctx, userID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
		}
		if removed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wishlist item not found")
		}
		return s.cart.AddItemTx(ctx, tx, userID, productID, qty)
	})
	if err != nil {
		return nil, err
	}
	return s.cart.Get(ctx, userID)
}
