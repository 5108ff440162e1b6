package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/reservation-engine/api/middleware"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
)

// requireActor resolves the acting user for write operations that are
// attributed in the audit trail.
func requireActor(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "actor header required").
			WithDetails(map[string]any{"header": middleware.ActorHeader})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "actor must be a uuid").
			WithDetails(map[string]any{"header": middleware.ActorHeader})
	}
	return id, nil
}
