package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/blog-comment-widget/internal/store"
)

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// classify maps an API failure onto the store error kinds
func classify(op, contentKey string, err error) error {
	switch {
	case IsStatus(err, http.StatusBadRequest):
		return &store.ValidationError{Field: "body", Err: err}
	case IsStatus(err, http.StatusUnauthorized):
		return &store.AuthError{Err: err}
	default:
		return &store.StoreError{Op: op, ContentKey: contentKey, Err: err}
	}
}
