package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/validation"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       *string        `json:"phone,omitempty"`
	Address     *string        `json:"address,omitempty"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ListResult is one page of accounts for administrators.
type ListResult struct {
	Users      []UserDTO `json:"users"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	Address      *string
	Role         enums.UserRole
}

// ProfileUpdate lists the fields a user may change on their own profile.
// Phone and address become checkout defaults.
type ProfileUpdate struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone   *string `json:"phone" validate:"omitempty,phone"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil
}

func (p ProfileUpdate) updates() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		out["phone"] = validation.NormalizePhone(*p.Phone)
	}
	if p.Address != nil {
		out["address"] = strings.TrimSpace(*p.Address)
	}
	return out
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Address:     u.Address,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleCustomer
	}
	return &models.User{
		Name:         strings.TrimSpace(c.Name),
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		Phone:        c.Phone,
		Address:      c.Address,
		Role:         role,
		IsActive:     true,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
