package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"contract-lens/internal/domain"
	apperrors "contract-lens/pkg/errors"
)

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrAnalysisNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrChatNotFound),
		errors.Is(err, domain.ErrPageOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidFile),
		errors.Is(err, domain.ErrUnsupportedType),
		errors.Is(err, domain.ErrNoDocumentLoaded):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrAINotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest
	}

	var decErr *domain.DecodeError
	if errors.As(err, &decErr) {
		return http.StatusUnprocessableEntity
	}

	return apperrors.GetStatusCode(err)
}

// writeServiceError maps the error and writes it as a JSON response.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}
