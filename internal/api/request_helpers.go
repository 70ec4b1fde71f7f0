package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
)

// resolveOwner returns the principal that owns jobs created by this request.
// With authentication enabled it is the token subject; otherwise the
// learner acts as their own owner.
func resolveOwner(r *http.Request, learnerID uuid.UUID) (uuid.UUID, bool) {
	if ownerID, ok := shared.GetOwnerID(r.Context()); ok {
		return ownerID, true
	}
	if learnerID != uuid.Nil {
		return learnerID, true
	}
	return uuid.Nil, false
}

// ownerFromRequest resolves the owner for requests without a body. When
// authentication is disabled the owner comes from the learner_id query
// parameter.
func ownerFromRequest(r *http.Request) (uuid.UUID, error) {
	if ownerID, ok := shared.GetOwnerID(r.Context()); ok {
		return ownerID, nil
	}

	raw := r.URL.Query().Get("learner_id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: learner_id is required", domain.ErrValidation)
	}
	learnerID, err := uuid.Parse(raw)
	if err != nil || learnerID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: learner_id", domain.ErrInvalidID)
	}
	return learnerID, nil
}

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrInvalidID, paramName)
	}

	return id, nil
}

// handleOwnerAndPathUUID extracts both the owner and a UUID from the path
// parameters. It writes an error response if either extraction fails.
func handleOwnerAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	ownerID, err := ownerFromRequest(r)
	if err != nil {
		log.Debug("owner could not be resolved", slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return ownerID, pathID, true
}

// decodeAndValidate reads the body into req and runs its validate tags.
// It writes a 400 response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		msg := "Invalid request format"
		if errors.Is(err, shared.ErrEmptyBody) {
			msg = GetSafeErrorMessage(err)
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
