// Package handler provides HTTP handlers for the Darius Projects API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/domain"
)

// errorResponse is the JSON body returned for every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError maps a domain error to an HTTP status and writes the JSON
// error body. Unrecognized errors are logged and reported as 500 without
// leaking internals.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		message = "internal server error"
	}
	respondJSON(w, status, errorResponse{Error: message})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, domain.ErrUserInactive):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrProjectAlreadyAssigned),
		errors.Is(err, domain.ErrUserAlreadyAssigned),
		errors.Is(err, domain.ErrProjectNotAssigned),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCannotAssignAdmin),
		errors.Is(err, domain.ErrCannotAssignInactive):
		return http.StatusConflict

	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidPassword),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrEndDateNotFuture),
		errors.Is(err, domain.ErrPasswordMismatch):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}
