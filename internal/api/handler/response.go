package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"customer-service/internal/api/handler/dto"
	"customer-service/internal/pkg/apperrors"
)

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// statusFor is the single place error kinds become HTTP codes. A missing
// identity is a 400 and an id mismatch a 401, matching existing clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	detail := dto.ErrorDetail{Message: err.Error()}

	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &validationError):
		detail.Message, detail.Field = validationError.Message, validationError.Field
	case errors.As(err, &appErr):
		detail.Code, detail.Message = appErr.Code, appErr.Message
	}
	if status == http.StatusInternalServerError && appErr == nil {
		slog.Default().Error("Unhandled internal error", "error", err)
		detail.Message = "An unexpected error occurred."
	}

	respondJSON(w, status, dto.ErrorResponse{Error: detail})
}
