package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
)

// profileColumns are the only columns a profile edit may write.
var profileColumns = []string{"name", "phone", "address", "updated_at"}

// ListFilters narrow the administrator account listing.
type ListFilters struct {
	Role   *enums.UserRole
	Active *bool
	Query  string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) users(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{})
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// EmailTaken reports whether a normalized address is already registered.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.users(ctx).Where("email = ?", email).Limit(1).Count(&n).Error
	return n > 0, err
}

// FindByEmail expects an already-normalized address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin leaves updated_at alone; a login is not a profile change.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.users(ctx).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

// UpdateProfile writes the given profile columns; anything outside
// profileColumns is ignored.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.users(ctx).Where("id = ?", id).Select(profileColumns).Updates(updates).Error
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.users(ctx).Where("id = ?", id).UpdateColumn("password_hash", hash).Error
}

// List pages through accounts newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.User, error) {
	query := r.users(ctx)
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.Active != nil {
		query = query.Where("is_active = ?", *filters.Active)
	}
	if q := strings.ToLower(strings.TrimSpace(filters.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where("(LOWER(name) LIKE ? OR email LIKE ?)", like, like)
	}
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.User
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) (int64, error) {
	res := r.users(ctx).Where("id = ?", id).Updates(map[string]any{"is_active": active, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role enums.UserRole, at time.Time) (int64, error) {
	res := r.users(ctx).Where("id = ?", id).Updates(map[string]any{"role": role, "updated_at": at})
	return res.RowsAffected, res.Error
}
