package store

import (
	"fmt"

	"github.com/blog-comment-widget/internal/validation"
)

// ValidationError is returned when a submission is rejected before any
// network call is made
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(v validation.ValidationError) *ValidationError {
	err := v.Err
	if err == nil {
		err = fmt.Errorf("%s", v.Message)
	}
	return &ValidationError{Field: v.Field, Err: err}
}

// AuthError is returned when an anonymous session could not be established
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("anonymous sign-in failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StoreError wraps a network or permission failure from the comment store
type StoreError struct {
	Op         string // "subscribe", "append" or "snapshot"
	ContentKey string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("comment store %s %q: %v", e.Op, e.ContentKey, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SubscriptionError reports a live subscription that stopped mid-stream.
// The subscription is left inactive; nothing reconnects it.
type SubscriptionError struct {
	ContentKey string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("live subscription for %q stopped: %v", e.ContentKey, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
