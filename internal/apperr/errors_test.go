package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("Name is required"), http.StatusBadRequest},
		{NotFound("Student not found"), http.StatusNotFound},
		{AlreadyExists("Email already exists"), http.StatusConflict},
		{ErrAlreadyRegistered, http.StatusConflict},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", ErrForbidden), http.StatusForbidden},
		{errors.New("disk full"), http.StatusTeapot},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HTTPStatus(tc.err, http.StatusTeapot), tc.err.Error())
	}
}

func TestError_MessageAndKind(t *testing.T) {
	err := NotFound("Student %s not found", "abc")
	require.EqualError(t, err, "Student abc not found")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrValidation)
}

func TestValidate(t *testing.T) {
	type input struct {
		Name  string `validate:"required"`
		Email string `validate:"required,email"`
	}
	v := validator.New()
	msgs := map[string]string{"Name": "Name is required"}

	require.NoError(t, Validate(v, input{Name: "a", Email: "a@b.co"}, msgs))

	err := Validate(v, input{Email: "a@b.co"}, msgs)
	require.EqualError(t, err, "Name is required")
	require.ErrorIs(t, err, ErrValidation)

	err = Validate(v, input{Name: "a", Email: "nope"}, msgs)
	require.EqualError(t, err, "email is invalid")
}
