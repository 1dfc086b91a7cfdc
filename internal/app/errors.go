package app

import (
	"errors"
	"fmt"
	"net/http"

	"autodoc/api/internal/authpw"
	"autodoc/api/internal/export"
	"autodoc/api/internal/ocr"
	"autodoc/api/internal/store"
)

// DomainError carries the HTTP status and the user-visible message for a
// failure. Err is kept for logging only.
type DomainError struct {
	Status  int
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func domainError(status int, message string, err error) *DomainError {
	return &DomainError{Status: status, Message: message, Err: err}
}

func badRequest(message string) *DomainError {
	return domainError(http.StatusBadRequest, message, nil)
}

// mapError turns any service error into a status and a message.
func mapError(err error) (int, string) {
	var domain *DomainError
	switch {
	case errors.As(err, &domain):
		return domain.Status, domain.Message
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, authpw.ErrMissingFields):
		return http.StatusBadRequest, "Username and password are required."
	case errors.Is(err, authpw.ErrUsernameTaken), errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "Username already exists."
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials."
	case errors.Is(err, ocr.ErrEmptyDocument):
		return http.StatusBadRequest, "Uploaded file is empty."
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "PDF export is not available on this server."
	default:
		return http.StatusInternalServerError, "An unexpected error occurred."
	}
}
