package reviews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
	"github.com/angelmondragon/medcart-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// purchaseChecker reports whether a user has received the product.
type purchaseChecker interface {
	HasDeliveredPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// Service is the review aggregate.
type Service interface {
	Upsert(ctx context.Context, userID, productID uuid.UUID, input UpsertInput) (*ReviewDTO, error)
	Summary(ctx context.Context, productID uuid.UUID) (*Summary, error)
	List(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]ReviewDTO, error)
	Delete(ctx context.Context, userID, reviewID uuid.UUID) error
	Vote(ctx context.Context, userID, reviewID uuid.UUID, helpful bool) (*ReviewDTO, error)
	Unvote(ctx context.Context, userID, reviewID uuid.UUID) (*ReviewDTO, error)
	Moderate(ctx context.Context, reviewID uuid.UUID, approved bool) (*ReviewDTO, error)
}

type ServiceParams struct {
	Repo      *Repository
	Tx        txRunner
	Purchases purchaseChecker
	Now       func() time.Time
}

type service struct {
	repo      *Repository
	tx        txRunner
	purchases purchaseChecker
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase checker required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, tx: params.Tx, purchases: params.Purchases, now: now}, nil
}

// Upsert creates the user's review of a product or edits the existing one.
func (s *service) Upsert(ctx context.Context, userID, productID uuid.UUID, input UpsertInput) (*ReviewDTO, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	verified, err := s.purchases.HasDeliveredPurchase(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	var saved *models.Review
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.WithContext(ctx).Select("id").First(&product, "id = ?", productID).Error; err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		repo := s.repo.WithTx(tx)
		row := &models.Review{
			UserID:             userID,
			ProductID:          productID,
			Rating:             input.Rating,
			Title:              strings.TrimSpace(input.Title),
			Comment:            strings.TrimSpace(input.Comment),
			ImageURL:           input.ImageURL,
			VideoURL:           input.VideoURL,
			IsVerifiedPurchase: verified,
			IsApproved:         true,
			UpdatedAt:          s.now().UTC(),
		}
		if err := repo.Upsert(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save review")
		}
		// the conflict path keeps the original id, so read it back
		stored, err := repo.FindByUserProduct(ctx, userID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review")
		}
		saved = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*saved)
	return &dto, nil
}

// Summary returns the mean of approved ratings; zero reviews yield 0.0.
func (s *service) Summary(ctx context.Context, productID uuid.UUID) (*Summary, error) {
	buckets, err := s.repo.RatingCounts(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate reviews")
	}
	out := &Summary{ProductID: productID, Distribution: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	var sum int64
	for _, b := range buckets {
		out.Distribution[b.Rating] += b.Count
		out.TotalReviews += b.Count
		sum += int64(b.Rating) * b.Count
	}
	if out.TotalReviews > 0 {
		out.AverageRating = decimal.NewFromInt(sum).
			DivRound(decimal.NewFromInt(out.TotalReviews), 2).
			InexactFloat64()
	}
	return out, nil
}

func (s *service) List(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListApproved(ctx, productID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	page, next := pagination.Page(rows, params.Limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return &ListResult{Reviews: toDTOs(page), NextCursor: next}, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]ReviewDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return toDTOs(rows), nil
}

func (s *service) Delete(ctx context.Context, userID, reviewID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, userID, reviewID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil
	})
}

// Vote records or changes the user's helpfulness vote.
func (s *service) Vote(ctx context.Context, userID, reviewID uuid.UUID, helpful bool) (*ReviewDTO, error) {
	return s.withReview(ctx, reviewID, func(repo *Repository, review *models.Review) error {
		if review.UserID == userID {
			return validation.FieldError("review_id", "cannot vote on your own review")
		}
		if err := repo.UpsertVote(ctx, &models.ReviewVote{ReviewID: reviewID, UserID: userID, IsHelpful: helpful}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save vote")
		}
		return nil
	})
}

func (s *service) Unvote(ctx context.Context, userID, reviewID uuid.UUID) (*ReviewDTO, error) {
	return s.withReview(ctx, reviewID, func(repo *Repository, _ *models.Review) error {
		affected, err := repo.DeleteVote(ctx, reviewID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove vote")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no vote found")
		}
		return nil
	})
}

// withReview runs a vote mutation and refreshes the cached helpful count.
func (s *service) withReview(ctx context.Context, reviewID uuid.UUID, fn func(repo *Repository, review *models.Review) error) (*ReviewDTO, error) {
	var out *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := repo.FindByID(ctx, reviewID)
		if err != nil {
			return notFoundOr(err)
		}
		if err := fn(repo, review); err != nil {
			return err
		}
		if err := repo.RefreshHelpfulCount(ctx, reviewID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh helpful count")
		}
		out, err = repo.FindByID(ctx, reviewID)
		return notFoundOr(err)
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*out)
	return &dto, nil
}

// Moderate approves or hides a review.
func (s *service) Moderate(ctx context.Context, reviewID uuid.UUID, approved bool) (*ReviewDTO, error) {
	affected, err := s.repo.SetApproved(ctx, reviewID, approved, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "moderate review")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	dto := ToDTO(*review)
	return &dto, nil
}

func notFoundOr(err error) error {
	if err == nil {
		return nil
	}
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
}
