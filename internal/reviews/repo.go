package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
)

// Repository persists reviews and helpfulness votes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Upsert writes the (user, product) review; a second submission overwrites the
// content but keeps moderation state and votes.
func (r *Repository) Upsert(ctx context.Context, row *models.Review) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"rating", "title", "comment", "image_url", "video_url", "is_verified_purchase", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *Repository) FindByUserProduct(ctx context.Context, userID, productID uuid.UUID) (*models.Review, error) {
	var row models.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var row models.Review
	if err := r.db.WithContext(ctx).Preload("User").First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListApproved returns a product's visible reviews, newest first.
func (r *Repository) ListApproved(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	query := r.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ? AND is_approved = ?", productID, true)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Review
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

type ratingBucket struct {
	Rating int
	Count  int64
}

// RatingCounts groups approved reviews by star rating.
func (r *Repository) RatingCounts(ctx context.Context, productID uuid.UUID) ([]ratingBucket, error) {
	var rows []ratingBucket
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("rating, COUNT(*) AS count").
		Where("product_id = ? AND is_approved = ?", productID, true).
		Group("rating").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) Delete(ctx context.Context, userID, reviewID uuid.UUID) (int64, error) {
	if err := r.db.WithContext(ctx).Where("review_id = ?", reviewID).Delete(&models.ReviewVote{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", reviewID, userID).Delete(&models.Review{})
	return res.RowsAffected, res.Error
}

func (r *Repository) SetApproved(ctx context.Context, reviewID uuid.UUID, approved bool, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", reviewID).
		Updates(map[string]any{"is_approved": approved, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (r *Repository) UpsertVote(ctx context.Context, vote *models.ReviewVote) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "review_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_helpful"}),
		}).
		Create(vote).Error
}

func (r *Repository) DeleteVote(ctx context.Context, reviewID, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("review_id = ? AND user_id = ?", reviewID, userID).
		Delete(&models.ReviewVote{})
	return res.RowsAffected, res.Error
}

// RefreshHelpfulCount recomputes helpful_count from the votes table.
func (r *Repository) RefreshHelpfulCount(ctx context.Context, reviewID uuid.UUID) error {
	helpful := r.db.WithContext(ctx).
		Model(&models.ReviewVote{}).
		Select("COUNT(*)").
		Where("review_id = ? AND is_helpful = ?", reviewID, true)
	return r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", reviewID).
		UpdateColumn("helpful_count", helpful).Error
}
