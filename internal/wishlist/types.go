package wishlist

import (
	"time"

	"github.com/google/uuid"

	product "github.com/angelmondragon/medcart-backend/internal/products"
)

// WishlistItemDTO wraps the product shown in a wishlist row.
type WishlistItemDTO struct {
	ID        uuid.UUID          `json:"id"`
	Product   product.ProductDTO `json:"product"`
	CreatedAt time.Time          `json:"created_at"`
}

// WishlistItemsPageDTO returns a cursor-paginated wishlist view.
type WishlistItemsPageDTO struct {
	Items      []WishlistItemDTO `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// WishlistIDsDTO lets clients mark saved products without loading them.
type WishlistIDsDTO struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
}
