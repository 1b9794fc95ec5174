// Package refills tracks when a customer is likely to run out of something
// they bought and nudges them to reorder.
package refills

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

const (
	DefaultIntervalDays  = 30
	DefaultDueWindowDays = 7
)

type SuggestionDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Purchasable   bool            `json:"purchasable"`
	LastOrderID   uuid.UUID       `json:"last_order_id"`
	SuggestedDate string          `json:"suggested_date"`
}

type Service interface {
	RecordPurchaseTx(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, productIDs []uuid.UUID, orderedAt time.Time) error
	ListDue(ctx context.Context, userID uuid.UUID) ([]SuggestionDTO, error)
	Dismiss(ctx context.Context, userID, suggestionID uuid.UUID) error
}

type ServiceParams struct {
	Repo          *Repository
	IntervalDays  int
	DueWindowDays int
	Now           func() time.Time
}

type service struct {
	repo          *Repository
	intervalDays  int
	dueWindowDays int
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("refill repository required")
	}
	s := &service{
		repo:          params.Repo,
		intervalDays:  params.IntervalDays,
		dueWindowDays: params.DueWindowDays,
		now:           params.Now,
	}
	if s.intervalDays <= 0 {
		s.intervalDays = DefaultIntervalDays
	}
	if s.dueWindowDays <= 0 {
		s.dueWindowDays = DefaultDueWindowDays
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RecordPurchaseTx schedules a refill reminder for each product in an order.
func (s *service) RecordPurchaseTx(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, productIDs []uuid.UUID, orderedAt time.Time) error {
	suggested := day(orderedAt).AddDate(0, 0, s.intervalDays)
	repo := s.repo.WithTx(tx)
	for _, productID := range productIDs {
		row := &models.RefillSuggestion{
			UserID:        userID,
			ProductID:     productID,
			LastOrderID:   orderID,
			SuggestedDate: suggested,
		}
		if err := repo.Upsert(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refill suggestion")
		}
	}
	return nil
}

func (s *service) ListDue(ctx context.Context, userID uuid.UUID) ([]SuggestionDTO, error) {
	now := s.now()
	cutoff := day(now).AddDate(0, 0, s.dueWindowDays)
	rows, err := s.repo.ListDue(ctx, userID, cutoff)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refill suggestions")
	}
	out := make([]SuggestionDTO, 0, len(rows))
	for _, row := range rows {
		dto := SuggestionDTO{
			ID:            row.ID,
			ProductID:     row.ProductID,
			LastOrderID:   row.LastOrderID,
			SuggestedDate: row.SuggestedDate.UTC().Format("2006-01-02"),
		}
		if row.Product != nil {
			dto.ProductName = row.Product.Name
			dto.UnitPrice = row.Product.Price
			dto.Purchasable = row.Product.Purchasable(now) && row.Product.AvailableStock() > 0
		}
		out = append(out, dto)
	}
	return out, nil
}

func (s *service) Dismiss(ctx context.Context, userID, suggestionID uuid.UUID) error {
	affected, err := s.repo.Dismiss(ctx, userID, suggestionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dismiss refill suggestion")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "refill suggestion not found")
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
