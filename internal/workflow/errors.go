package workflow

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds returned by workflow operations. Operations wrap one of
// these with the underlying cause.
var (
	ErrNotFound   = errors.New("document not found")
	ErrIO         = errors.New("file operation failed")
	ErrLogUpdate  = errors.New("signing log update failed")
	ErrValidation = errors.New("validation failed")
)

// ErrInvalidPIN indicates a signing PIN that does not match the shared code.
var ErrInvalidPIN = errors.New("invalid signing PIN")

// MapHTTPStatus maps workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func wrap(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}
