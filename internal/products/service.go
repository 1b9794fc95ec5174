package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
)

const (
	defaultExpiringWindowDays = 30
	// RelatedLimit caps the "customers also browse" strip on a product page.
	RelatedLimit = 8
)

// Service exposes catalog reads and administrator product management.
type Service interface {
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error)
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	Related(ctx context.Context, productID uuid.UUID) ([]ProductDTO, error)
	Create(ctx context.Context, input ProductCreate) (*ProductDTO, error)
	Update(ctx context.Context, productID uuid.UUID, edit ProductEdit) (*ProductDTO, error)
	Deactivate(ctx context.Context, productID uuid.UUID) error
	LowStock(ctx context.Context, limit int) ([]ProductDTO, error)
	ExpiringSoon(ctx context.Context, withinDays, limit int) ([]ProductDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, name string, description *string) (*CategoryDTO, error)
}

// ServiceParams bundles the catalog service dependencies.
type ServiceParams struct {
	Repo *Repository
	Now  func() time.Time
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, now: now}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	now := s.now().UTC()
	rows, err := s.repo.ListPurchasable(ctx, filters, cursor, params.Limit, startOfDay(now))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page, next := pagination.Page(rows, params.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &ListResult{Products: toDTOs(page, now), NextCursor: next}, nil
}

// Get returns a product customers can see; inactive products are not found.
func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := ToDTO(*product, s.now())
	return &dto, nil
}

// Related returns other purchasable products from the same category. A product
// without a category has no related products.
func (s *service) Related(ctx context.Context, productID uuid.UUID) ([]ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.CategoryID == nil {
		return []ProductDTO{}, nil
	}
	now := s.now().UTC()
	rows, err := s.repo.Related(ctx, *product.CategoryID, product.ID, RelatedLimit, startOfDay(now))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list related products")
	}
	return toDTOs(rows, now), nil
}

func (s *service) Create(ctx context.Context, input ProductCreate) (*ProductDTO, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.CategoryID != nil {
		if err := s.ensureCategory(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	product := input.toModel()
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return s.render(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, productID uuid.UUID, edit ProductEdit) (*ProductDTO, error) {
	if err := edit.Validate(); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if edit.IsEmpty() {
		dto := ToDTO(*current, s.now())
		return &dto, nil
	}
	if edit.CategoryID != nil {
		if err := s.ensureCategory(ctx, *edit.CategoryID); err != nil {
			return nil, err
		}
	}

	updates := edit.updates()
	updates["updated_at"] = s.now().UTC()
	affected, err := s.repo.Update(ctx, productID, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "stock quantity cannot drop below reserved quantity").
			WithDetails(map[string]int{"reserved_quantity": current.ReservedQuantity})
	}
	return s.render(ctx, productID)
}

func (s *service) Deactivate(ctx context.Context, productID uuid.UUID) error {
	affected, err := s.repo.Update(ctx, productID, map[string]any{"is_active": false, "updated_at": s.now().UTC()})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) LowStock(ctx context.Context, limit int) ([]ProductDTO, error) {
	rows, err := s.repo.LowStock(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
	}
	return toDTOs(rows, s.now()), nil
}

// ExpiringSoon includes products that have already expired.
func (s *service) ExpiringSoon(ctx context.Context, withinDays, limit int) ([]ProductDTO, error) {
	if withinDays <= 0 {
		withinDays = defaultExpiringWindowDays
	}
	now := s.now().UTC()
	cutoff := startOfDay(now).AddDate(0, 0, withinDays)
	rows, err := s.repo.ExpiringBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expiring products")
	}
	return toDTOs(rows, now), nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toCategoryDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) CreateCategory(ctx context.Context, name string, description *string) (*CategoryDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	category := &models.Category{Name: name, Description: description}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return toCategoryDTO(category), nil
}

func (s *service) load(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) render(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*product, s.now())
	return &dto, nil
}

func (s *service) ensureCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindCategory(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown category").WithDetails(map[string]string{"category_id": id.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
