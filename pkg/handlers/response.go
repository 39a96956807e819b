package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// serviceErrorStatus maps service-layer sentinel errors to HTTP status
// codes and error codes. Unknown errors map to 500.
func serviceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(err, apperrors.ErrRoleRestricted):
		return http.StatusForbidden, "role_restricted"
	case errors.Is(err, apperrors.ErrLocked):
		return http.StatusForbidden, "milestone_locked"
	case errors.Is(err, apperrors.ErrInvalidState):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, apperrors.ErrInvalidAction):
		return http.StatusBadRequest, "invalid_action"
	case errors.Is(err, apperrors.ErrInvalidProgress):
		return http.StatusBadRequest, "invalid_progress"
	case errors.Is(err, apperrors.ErrLimitExceeded):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, apperrors.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_role"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
