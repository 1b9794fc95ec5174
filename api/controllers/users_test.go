package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/medcart-backend/internal/users"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
)

type stubUsersService struct {
	users.Service
	setActiveFn func(actorID, userID uuid.UUID, active bool) (*users.UserDTO, error)
	setRoleFn   func(actorID, userID uuid.UUID, role enums.UserRole) (*users.UserDTO, error)
}

func (s stubUsersService) SetActive(_ context.Context, actorID, userID uuid.UUID, active bool) (*users.UserDTO, error) {
	return s.setActiveFn(actorID, userID, active)
}

func (s stubUsersService) SetRole(_ context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*users.UserDTO, error) {
	return s.setRoleFn(actorID, userID, role)
}

func TestAdminUserStatusPassesActor(t *testing.T) {
	actor, target := uuid.New(), uuid.New()
	svc := stubUsersService{setActiveFn: func(a, u uuid.UUID, active bool) (*users.UserDTO, error) {
		assert.Equal(t, actor, a)
		assert.Equal(t, target, u)
		assert.False(t, active)
		return &users.UserDTO{ID: u, IsActive: active}, nil
	}}

	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/api/admin/v1/users/x/status", `{"is_active":false}`, actor, map[string]string{"userId": target.String()})
	AdminUserStatus(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var dto users.UserDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	assert.False(t, dto.IsActive)
}

func TestAdminUserStatusRequiresFlag(t *testing.T) {
	svc := stubUsersService{setActiveFn: func(uuid.UUID, uuid.UUID, bool) (*users.UserDTO, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/", `{}`, uuid.New(), map[string]string{"userId": uuid.NewString()})
	AdminUserStatus(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUserRoleRejectsUnknownRole(t *testing.T) {
	svc := stubUsersService{setRoleFn: func(uuid.UUID, uuid.UUID, enums.UserRole) (*users.UserDTO, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/", `{"role":"root"}`, uuid.New(), map[string]string{"userId": uuid.NewString()})
	AdminUserRole(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
