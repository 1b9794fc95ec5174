package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is one user's rating of one product.
type Review struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:reviews_user_product_key"`
	User               *User     `gorm:"foreignKey:UserID;references:ID"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:reviews_user_product_key;index:reviews_product_id_idx"`
	Rating             int       `gorm:"column:rating;not null"`
	Title              string    `gorm:"column:title;not null"`
	Comment            string    `gorm:"column:comment;not null"`
	ImageURL           *string   `gorm:"column:image_url"`
	VideoURL           *string   `gorm:"column:video_url"`
	IsVerifiedPurchase bool      `gorm:"column:is_verified_purchase;not null;default:false"`
	IsApproved         bool      `gorm:"column:is_approved;not null"`
	HelpfulCount       int       `gorm:"column:helpful_count;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ReviewVote records whether a user found a review helpful.
type ReviewVote struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ReviewID  uuid.UUID `gorm:"column:review_id;type:uuid;not null;uniqueIndex:review_votes_review_user_key"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:review_votes_review_user_key"`
	IsHelpful bool      `gorm:"column:is_helpful;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (v *ReviewVote) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
