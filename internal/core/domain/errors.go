package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrPayloadTooLarge       = errors.New("payload too large")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrTemporary             = errors.New("temporary failure")
	ErrExtractionFailed      = errors.New("text extraction failed")
	ErrStageDegraded         = errors.New("stage degraded")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrUnexpected            = errors.New("unexpected error")
	ErrJobNotFound           = errors.New("analysis job not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserError is a failure whose message is safe to return to callers as is.
type UserError struct {
	Kind    error
	Message string
}

func NewUserError(kind error, message string) *UserError {
	return &UserError{Kind: kind, Message: message}
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Kind
}
