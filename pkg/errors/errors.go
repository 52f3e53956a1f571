// Package errors defines the sentinel errors shared by the docindex packages
// and maps them to HTTP statuses and stable machine-readable codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidIndex     = errors.New("invalid search index")
	ErrDanglingRef      = errors.New("dangling document reference")
	ErrIndexNotLoaded   = errors.New("search index not loaded")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyCorpus      = errors.New("no documents to index")
	ErrUnavailable      = errors.New("dependency unavailable")
	ErrTimeout          = errors.New("operation timed out")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// kinds is checked in order; ErrDanglingRef comes before ErrInvalidIndex
// because validation errors may wrap both.
var kinds = []struct {
	sentinel error
	status   int
	code     string
}{
	{ErrDocumentNotFound, http.StatusNotFound, "document_not_found"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{ErrDanglingRef, http.StatusUnprocessableEntity, "dangling_reference"},
	{ErrInvalidIndex, http.StatusUnprocessableEntity, "invalid_index"},
	{ErrEmptyCorpus, http.StatusUnprocessableEntity, "empty_corpus"},
	{ErrIndexNotLoaded, http.StatusServiceUnavailable, "index_not_loaded"},
	{ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
	{ErrTimeout, http.StatusServiceUnavailable, "timeout"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// AppError attaches a client-facing message, and optionally a status that
// overrides the sentinel's, to a sentinel error.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Newf builds an AppError. A zero statusCode keeps the sentinel's status.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns the stable identifier clients can switch on, "internal" for
// errors that match no sentinel.
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.code
		}
	}
	return "internal"
}

// Body is the JSON error body every docindex endpoint writes.
func Body(err error) map[string]string {
	return map[string]string{"error": err.Error(), "code": Code(err)}
}
