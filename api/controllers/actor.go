package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alifmarket/marketplace-backend/api/middleware"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
)

// actor is the authenticated principal resolved from the request context.
type actor struct {
	UserID uuid.UUID
	Role   string
}

func actorFromRequest(r *http.Request) (actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())}, nil
}

// parseUUIDField validates a uuid carried in a request body field.
func parseUUIDField(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

// parseIDParam reads a uuid path parameter, labelling errors with the
// human name of the resource ("offer id", "order id", ...).
func parseIDParam(r *http.Request, urlKey, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, urlKey))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}
