package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/medcart-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

// requireUserID returns the authenticated caller or an UNAUTHORIZED error.
func requireUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
