// Package apperr defines the error kinds shared by the event map services and
// their mapping to HTTP status codes.
package apperr

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

var (
	ErrValidation         = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrDuplicateLocation  = errors.New("an event already exists at this location")
	ErrGeocode            = errors.New("address could not be geocoded")
	ErrUpstream           = errors.New("upstream service failed")
	ErrInsufficientPoints = errors.New("at least two coordinates are required")
)

// Validation reports the given field names as missing or malformed.
func Validation(msg string, fields ...string) error {
	if len(fields) > 0 {
		msg += ": " + strings.Join(fields, ", ")
	}
	return errors.Wrap(ErrValidation, msg)
}

func NotFound(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

func Upstream(err error, service string) error {
	return errors.Wrapf(ErrUpstream, "%s: %v", service, err)
}

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInsufficientPoints):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicateLocation):
		return fiber.StatusConflict
	case errors.Is(err, ErrGeocode):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrUpstream):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// HTTP converts err into a *fiber.Error carrying the mapped status.
func HTTP(err error) error {
	return fiber.NewError(Status(err), err.Error())
}
