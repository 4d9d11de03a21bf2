package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

func actorIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid caller identity")
	}
	return id, nil
}
