package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("content", "must not be empty"), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrBlocked, http.StatusUnprocessableEntity},
		{ErrNoRecipients, http.StatusUnprocessableEntity},
		{fmt.Errorf("db exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestHTTPStatusUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("failed to load thread: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))

	wrappedValidation := fmt.Errorf("bad request: %w", Validation("kind", "unknown"))
	assert.True(t, IsValidation(wrappedValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(wrappedValidation))
}
