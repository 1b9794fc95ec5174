package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
)

// UpsertInput is the body of a review submission.
type UpsertInput struct {
	Rating   int     `json:"rating" validate:"required,min=1,max=5"`
	Title    string  `json:"title" validate:"max=200"`
	Comment  string  `json:"comment" validate:"max=5000"`
	ImageURL *string `json:"image_url" validate:"omitempty,url"`
	VideoURL *string `json:"video_url" validate:"omitempty,url"`
}

type ReviewDTO struct {
	ID                 uuid.UUID `json:"id"`
	ProductID          uuid.UUID `json:"product_id"`
	UserID             uuid.UUID `json:"user_id"`
	UserName           string    `json:"user_name"`
	Rating             int       `json:"rating"`
	Title              string    `json:"title"`
	Comment            string    `json:"comment"`
	ImageURL           *string   `json:"image_url,omitempty"`
	VideoURL           *string   `json:"video_url,omitempty"`
	IsVerifiedPurchase bool      `json:"is_verified_purchase"`
	IsApproved         bool      `json:"is_approved"`
	HelpfulCount       int       `json:"helpful_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Summary aggregates a product's approved reviews.
type Summary struct {
	ProductID     uuid.UUID     `json:"product_id"`
	AverageRating float64       `json:"average_rating"`
	TotalReviews  int64         `json:"total_reviews"`
	Distribution  map[int]int64 `json:"distribution"`
}

type ListResult struct {
	Reviews    []ReviewDTO `json:"reviews"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

func ToDTO(r models.Review) ReviewDTO {
	dto := ReviewDTO{
		ID:                 r.ID,
		ProductID:          r.ProductID,
		UserID:             r.UserID,
		Rating:             r.Rating,
		Title:              r.Title,
		Comment:            r.Comment,
		ImageURL:           r.ImageURL,
		VideoURL:           r.VideoURL,
		IsVerifiedPurchase: r.IsVerifiedPurchase,
		IsApproved:         r.IsApproved,
		HelpfulCount:       r.HelpfulCount,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.User != nil {
		dto.UserName = r.User.Name
	}
	return dto
}

func toDTOs(rows []models.Review) []ReviewDTO {
	out := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToDTO(row))
	}
	return out
}
