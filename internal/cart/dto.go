package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
)

// LineDTO is a cart line priced at the product's current price.
type LineDTO struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand"`
	ImageURL       *string         `json:"image_url,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	LineTotal      decimal.Decimal `json:"line_total"`
	AvailableStock int             `json:"available_stock"`
	Purchasable    bool            `json:"purchasable"`
}

// View is the cart with derived totals.
type View struct {
	Items      []LineDTO `json:"items"`
	TotalItems int       `json:"total_items"`
	pricing.Totals
}

// SavedItemDTO is a saved-for-later entry.
type SavedItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	AvailableStock int             `json:"available_stock"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BuildView prices lines with the given policy. Lines whose product is missing are dropped.
func BuildView(items []models.CartItem, policy pricing.Policy, now time.Time) *View {
	view := &View{Items: make([]LineDTO, 0, len(items))}
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		p := item.Product
		view.Items = append(view.Items, LineDTO{
			ID:             item.ID,
			ProductID:      p.ID,
			Name:           p.Name,
			Brand:          p.Brand,
			ImageURL:       p.ImageURL,
			UnitPrice:      p.Price,
			Quantity:       item.Quantity,
			LineTotal:      pricing.LineTotal(p.Price, item.Quantity),
			AvailableStock: p.AvailableStock(),
			Purchasable:    p.Purchasable(now),
		})
		view.TotalItems += item.Quantity
		lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity})
	}
	view.Totals = policy.ComputeLines(lines)
	return view
}

func toSavedDTOs(rows []models.SavedItem) []SavedItemDTO {
	out := make([]SavedItemDTO, 0, len(rows))
	for _, row := range rows {
		dto := SavedItemDTO{ID: row.ID, ProductID: row.ProductID, Quantity: row.Quantity, CreatedAt: row.CreatedAt}
		if row.Product != nil {
			dto.Name = row.Product.Name
			dto.UnitPrice = row.Product.Price
			dto.AvailableStock = row.Product.AvailableStock()
		}
		out = append(out, dto)
	}
	return out
}
