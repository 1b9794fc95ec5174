package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
	"github.com/angelmondragon/medcart-backend/pkg/validation"
)

// Service serves the signed-in user's profile and administrator account management.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*UserDTO, error)

	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error)
	SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) (*UserDTO, error)
	SetRole(ctx context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*UserDTO, error)
}

// sessionRevoker signs an account out everywhere after an access change.
type sessionRevoker interface {
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

type ServiceParams struct {
	Repo     *Repository
	Sessions sessionRevoker
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	sessions sessionRevoker
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, sessions: params.Sessions, logg: params.Logger, now: now}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*UserDTO, error) {
	if err := validation.Struct(update); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	updates := update.updates()
	updates["updated_at"] = s.now().UTC()
	if err := s.repo.UpdateProfile(ctx, userID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return s.Get(ctx, userID)
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error) {
	if filters.Role != nil && !filters.Role.IsValid() {
		return nil, validation.FieldError("role", "must be customer or admin")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	page, next := pagination.Page(rows, params.Limit, func(u models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})
	out := make([]UserDTO, 0, len(page))
	for i := range page {
		out = append(out, *FromModel(&page[i]))
	}
	return &ListResult{Users: out, NextCursor: next}, nil
}

// SetActive enables or disables an account. Disabling signs the account out
// of every session. Administrators cannot disable themselves.
func (s *service) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) (*UserDTO, error) {
	if actorID == userID && !active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot deactivate your own account")
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return FromModel(user), nil
	}
	if _, err := s.repo.SetActive(ctx, userID, active, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account status")
	}
	if !active {
		s.signOut(ctx, userID)
	}
	s.audit(ctx, actorID, userID, "users.account.status_changed", map[string]any{"is_active": active})
	return s.Get(ctx, userID)
}

// SetRole promotes or demotes an account. A role change revokes existing
// sessions so the next token carries the new role.
func (s *service) SetRole(ctx context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*UserDTO, error) {
	if !role.IsValid() {
		return nil, validation.FieldError("role", "must be customer or admin")
	}
	if actorID == userID && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot change your own role")
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return FromModel(user), nil
	}
	if _, err := s.repo.SetRole(ctx, userID, role, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	s.signOut(ctx, userID)
	s.audit(ctx, actorID, userID, "users.account.role_changed", map[string]any{"from": user.Role, "to": role})
	return s.Get(ctx, userID)
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// signOut is best effort. Login and refresh re-check the account anyway.
func (s *service) signOut(ctx context.Context, userID uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAll(ctx, userID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "users.sessions.revoke_failed", err)
	}
}

func (s *service) audit(ctx context.Context, actorID, userID uuid.UUID, event string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	fields["actor_id"] = actorID.String()
	s.logg.Info(s.logg.WithFields(s.logg.WithUserID(ctx, userID.String()), fields), event)
}
