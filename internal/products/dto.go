package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
)

// CategoryDTO is the public category shape.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

// ProductDTO exposes the stored fields plus every derived stock/expiry field.
type ProductDTO struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	Brand                string          `json:"brand"`
	Description          string          `json:"description"`
	Category             *CategoryDTO    `json:"category,omitempty"`
	ProductType          string          `json:"product_type"`
	Price                decimal.Decimal `json:"price"`
	StockQuantity        int             `json:"stock_quantity"`
	ReservedQuantity     int             `json:"reserved_quantity"`
	AvailableStock       int             `json:"available_stock"`
	LowStockThreshold    int             `json:"low_stock_threshold"`
	IsLowStock           bool            `json:"is_low_stock"`
	Dosage               *string         `json:"dosage,omitempty"`
	Precautions          *string         `json:"precautions,omitempty"`
	RequiresPrescription bool            `json:"requires_prescription"`
	ExpiryDate           *string         `json:"expiry_date,omitempty"`
	IsExpired            bool            `json:"is_expired"`
	DaysToExpiry         *int            `json:"days_to_expiry,omitempty"`
	ImageURL             *string         `json:"image_url,omitempty"`
	IsActive             bool            `json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ListResult is one page of catalog products.
type ListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toCategoryDTO(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{ID: c.ID, Name: c.Name, Description: c.Description}
}

// ToDTO renders a product as of now.
func ToDTO(p models.Product, now time.Time) ProductDTO {
	dto := ProductDTO{
		ID:                   p.ID,
		Name:                 p.Name,
		Brand:                p.Brand,
		Description:          p.Description,
		Category:             toCategoryDTO(p.Category),
		ProductType:          string(p.ProductType),
		Price:                p.Price,
		StockQuantity:        p.StockQuantity,
		ReservedQuantity:     p.ReservedQuantity,
		AvailableStock:       p.AvailableStock(),
		LowStockThreshold:    p.LowStockThreshold,
		IsLowStock:           p.IsLowStock(),
		Dosage:               p.Dosage,
		Precautions:          p.Precautions,
		RequiresPrescription: p.RequiresPrescription,
		IsExpired:            p.IsExpired(now),
		DaysToExpiry:         p.DaysToExpiry(now),
		ImageURL:             p.ImageURL,
		IsActive:             p.IsActive,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if p.ExpiryDate != nil {
		formatted := p.ExpiryDate.UTC().Format(dateLayout)
		dto.ExpiryDate = &formatted
	}
	return dto
}

func toDTOs(rows []models.Product, now time.Time) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToDTO(row, now))
	}
	return out
}
