package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/validation"
)

const (
	dateLayout               = "2006-01-02"
	defaultLowStockThreshold = 10
)

// ProductCreate is the full set of fields an administrator supplies for a new product.
type ProductCreate struct {
	Name                 string          `json:"name" validate:"required,min=2,max=200"`
	Brand                string          `json:"brand" validate:"required,max=120"`
	Description          string          `json:"description" validate:"max=5000"`
	CategoryID           *uuid.UUID      `json:"category_id"`
	ProductType          string          `json:"product_type" validate:"required,oneof=medicine supplement"`
	Price                decimal.Decimal `json:"price"`
	StockQuantity        int             `json:"stock_quantity" validate:"min=0"`
	LowStockThreshold    *int            `json:"low_stock_threshold" validate:"omitempty,min=0"`
	Dosage               *string         `json:"dosage" validate:"omitempty,max=200"`
	Precautions          *string         `json:"precautions" validate:"omitempty,max=2000"`
	RequiresPrescription bool            `json:"requires_prescription"`
	ExpiryDate           *string         `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	ImageURL             *string         `json:"image_url" validate:"omitempty,url"`
	IsActive             *bool           `json:"is_active"`
}

// ProductEdit enumerates every field an administrator may change on an existing
// product. Reserved quantity is owned by subscriptions and is not editable.
type ProductEdit struct {
	Name                 *string          `json:"name" validate:"omitempty,min=2,max=200"`
	Brand                *string          `json:"brand" validate:"omitempty,max=120"`
	Description          *string          `json:"description" validate:"omitempty,max=5000"`
	CategoryID           *uuid.UUID       `json:"category_id"`
	ProductType          *string          `json:"product_type" validate:"omitempty,oneof=medicine supplement"`
	Price                *decimal.Decimal `json:"price"`
	StockQuantity        *int             `json:"stock_quantity" validate:"omitempty,min=0"`
	LowStockThreshold    *int             `json:"low_stock_threshold" validate:"omitempty,min=0"`
	Dosage               *string          `json:"dosage" validate:"omitempty,max=200"`
	Precautions          *string          `json:"precautions" validate:"omitempty,max=2000"`
	RequiresPrescription *bool            `json:"requires_prescription"`
	ExpiryDate           *string          `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	ClearExpiryDate      bool             `json:"clear_expiry_date"`
	ImageURL             *string          `json:"image_url" validate:"omitempty,url"`
	IsActive             *bool            `json:"is_active"`
}

// Validate runs tag rules plus the checks tags cannot express.
func (c ProductCreate) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if !c.Price.IsPositive() {
		return fieldError("price", "must be greater than zero")
	}
	return nil
}

func (c ProductCreate) toModel() *models.Product {
	threshold := defaultLowStockThreshold
	if c.LowStockThreshold != nil {
		threshold = *c.LowStockThreshold
	}
	active := true
	if c.IsActive != nil {
		active = *c.IsActive
	}
	return &models.Product{
		CategoryID:           c.CategoryID,
		Name:                 strings.TrimSpace(c.Name),
		Brand:                strings.TrimSpace(c.Brand),
		Description:          strings.TrimSpace(c.Description),
		ProductType:          enums.ProductType(c.ProductType),
		Price:                c.Price.Round(2),
		StockQuantity:        c.StockQuantity,
		LowStockThreshold:    threshold,
		Dosage:               c.Dosage,
		Precautions:          c.Precautions,
		RequiresPrescription: c.RequiresPrescription,
		ExpiryDate:           mustParseDate(c.ExpiryDate),
		ImageURL:             c.ImageURL,
		IsActive:             active,
	}
}

func (e ProductEdit) Validate() error {
	if err := validation.Struct(e); err != nil {
		return err
	}
	if e.Price != nil && !e.Price.IsPositive() {
		return fieldError("price", "must be greater than zero")
	}
	if e.ClearExpiryDate && e.ExpiryDate != nil {
		return fieldError("expiry_date", "cannot be set and cleared together")
	}
	return nil
}

// IsEmpty reports whether the edit changes nothing.
func (e ProductEdit) IsEmpty() bool {
	return len(e.updates()) == 0
}

// updates maps the edit onto column names. Call Validate first.
func (e ProductEdit) updates() map[string]any {
	out := map[string]any{}
	if e.Name != nil {
		out["name"] = strings.TrimSpace(*e.Name)
	}
	if e.Brand != nil {
		out["brand"] = strings.TrimSpace(*e.Brand)
	}
	if e.Description != nil {
		out["description"] = strings.TrimSpace(*e.Description)
	}
	if e.CategoryID != nil {
		out["category_id"] = *e.CategoryID
	}
	if e.ProductType != nil {
		out["product_type"] = enums.ProductType(*e.ProductType)
	}
	if e.Price != nil {
		out["price"] = e.Price.Round(2)
	}
	if e.StockQuantity != nil {
		out["stock_quantity"] = *e.StockQuantity
	}
	if e.LowStockThreshold != nil {
		out["low_stock_threshold"] = *e.LowStockThreshold
	}
	if e.Dosage != nil {
		out["dosage"] = *e.Dosage
	}
	if e.Precautions != nil {
		out["precautions"] = *e.Precautions
	}
	if e.RequiresPrescription != nil {
		out["requires_prescription"] = *e.RequiresPrescription
	}
	if e.ExpiryDate != nil {
		out["expiry_date"] = *mustParseDate(e.ExpiryDate)
	}
	if e.ClearExpiryDate {
		out["expiry_date"] = nil
	}
	if e.ImageURL != nil {
		out["image_url"] = *e.ImageURL
	}
	if e.IsActive != nil {
		out["is_active"] = *e.IsActive
	}
	return out
}

// mustParseDate is only called on values already checked by the datetime tag.
func mustParseDate(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	parsed, err := time.ParseInLocation(dateLayout, *raw, time.UTC)
	if err != nil {
		return nil
	}
	return &parsed
}

func fieldError(field, msg string) error {
	return validation.FieldError(field, msg)
}
