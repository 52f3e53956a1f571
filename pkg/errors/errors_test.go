package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCodeAndCode(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("lookup: %w", ErrDocumentNotFound), http.StatusNotFound, "document_not_found"},
		{"bad input", ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"dangling", fmt.Errorf("terms: %w", ErrDanglingRef), http.StatusUnprocessableEntity, "dangling_reference"},
		{"both", errors.Join(fmt.Errorf("titles: %w", ErrInvalidIndex), fmt.Errorf("terms: %w", ErrDanglingRef)), http.StatusUnprocessableEntity, "dangling_reference"},
		{"not loaded", ErrIndexNotLoaded, http.StatusServiceUnavailable, "index_not_loaded"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"override", Newf(ErrInvalidInput, http.StatusTeapot, "odd"), http.StatusTeapot, "invalid_input"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, HTTPStatusCode(tc.err))
			assert.Equal(t, tc.code, Code(tc.err))
		})
	}
}

func TestAppError(t *testing.T) {
	err := Newf(ErrDocumentNotFound, 0, "no document named %q", "C001344_NARM")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Equal(t, `document not found: no document named "C001344_NARM"`, err.Error())
	assert.Equal(t, http.StatusNotFound, HTTPStatusCode(err))
}

func TestBody(t *testing.T) {
	body := Body(Newf(ErrInvalidInput, 0, "limit must be a positive integer"))
	assert.Equal(t, map[string]string{
		"error": "invalid input: limit must be a positive integer",
		"code":  "invalid_input",
	}, body)
	assert.Equal(t, "internal", Body(fmt.Errorf("listing failed"))["code"])
}
