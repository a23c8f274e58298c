// Package apperr defines the error kinds surfaced to API and CLI callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyExists      = errors.New("already exists")
	ErrAlreadyRegistered  = errors.New("Email already registered")
	ErrInvalidCredentials = errors.New("Invalid credentials")
)

// Error carries a caller-facing message on top of one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports a bad or missing field.
func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }

// NotFound reports a missing record.
func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }

// AlreadyExists reports a uniqueness violation.
func AlreadyExists(format string, args ...any) error {
	return newf(ErrAlreadyExists, format, args...)
}

// Validate runs struct validation and converts the first failing field into a
// Validation error. messages maps struct field names to caller-facing text.
func Validate(v *validator.Validate, in any, messages map[string]string) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return Validation("%v", err)
	}
	fe := fieldErrs[0]
	if msg, ok := messages[fe.StructField()]; ok {
		return Validation("%s", msg)
	}
	return Validation("%s is invalid", strings.ToLower(fe.Field()))
}

// HTTPStatus maps an error to a response status. Unknown errors get fallback.
func HTTPStatus(err error, fallback int) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrAlreadyRegistered):
		return http.StatusConflict
	}
	return fallback
}
