package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/fetch"
	"github.com/jonathan/addrlens/internal/schemas"
	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates the requested resource does not exist
type ErrNotFound struct {
	What string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", e.What)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		notFoundErr   *ErrNotFound
		addressErr    *types.AddressError
		schemaErr     *schemas.ValidationError
		parseErr      *dom.ParseError
		fetchErr      *fetch.Error
		storeErr      *tags.StoreError
		maxBytesErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &addressErr),
		errors.As(err, &schemaErr),
		errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
